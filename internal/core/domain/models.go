package domain

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"time"
)

// DateLayout is the date format embedded in artifact names.
const DateLayout = "01022006" // MMDDYYYY

// NoAudioTag marks artifacts the producer saved without an audio track.
const NoAudioTag = "NO_AUDIO"

// ErrNotExist reports that a remote path does not exist.
var ErrNotExist = errors.New("remote file does not exist")

// ErrProberUnavailable reports that no media probe tool is installed.
// Callers treat this as "cannot check", not as a corrupt file.
var ErrProberUnavailable = errors.New("media probe tool unavailable")

// dateFlagPattern validates an explicit -d date. The pattern literally
// accepts months 00-19 and days 00-39; kept as-is so existing invocations
// keep working rather than silently tightening the range.
var dateFlagPattern = regexp.MustCompile(`^[0-1][0-9][0-3][0-9][0-9]{4}$`)

// FetchRequest describes a single fetch invocation. It is resolved once at
// startup and never mutated.
type FetchRequest struct {
	Project string
	Date    string // MMDDYYYY
	Force   bool
}

// ResolveDate turns the CLI date flags into a concrete MMDDYYYY string.
// Precedence: explicit date, then day offset, then today.
func ResolveDate(explicit string, offsetDays int, now time.Time) (string, error) {
	if explicit != "" {
		if !dateFlagPattern.MatchString(explicit) {
			return "", fmt.Errorf("invalid date %q: want MMDDYYYY", explicit)
		}
		return explicit, nil
	}
	if offsetDays < 0 {
		return "", fmt.Errorf("invalid day offset %d: must be non-negative", offsetDays)
	}
	return now.AddDate(0, 0, -offsetDays).Format(DateLayout), nil
}

// ArtifactName returns the plain filename variant for a project and date.
func ArtifactName(project, date string) string {
	return fmt.Sprintf("%s.%s.mp4", project, date)
}

// ArtifactNameNoAudio returns the variant the producer writes when the
// audio track is missing.
func ArtifactNameNoAudio(project, date string) string {
	return fmt.Sprintf("%s.%s.%s.mp4", project, date, NoAudioTag)
}

// ArtifactVariants lists the candidate filenames in resolution order:
// plain first, then the no-audio variant.
func ArtifactVariants(project, date string) []string {
	return []string{ArtifactName(project, date), ArtifactNameNoAudio(project, date)}
}

// ExtractArtifactName scans a notification message for an artifact filename
// matching the project and date. It accepts optional uppercase variant tags
// between the date and the .mp4 extension (e.g. NO_AUDIO) and returns the
// full filename, or "" when the message names no complete artifact.
func ExtractArtifactName(project, date, text string) string {
	re := regexp.MustCompile(regexp.QuoteMeta(project) + `\.` + regexp.QuoteMeta(date) + `(?:\.[A-Z0-9_]+)*\.mp4`)
	return re.FindString(text)
}

// endTimePattern matches the "End: HH:MM" field of a schedule announcement.
var endTimePattern = regexp.MustCompile(`End:\s*([0-2]?[0-9]):([0-5][0-9])`)

// ParseEndTime extracts the announced end time-of-day from a schedule
// message. The last return is false when the message carries no end time.
func ParseEndTime(text string) (hour, minute int, ok bool) {
	m := endTimePattern.FindStringSubmatch(text)
	if m == nil {
		return 0, 0, false
	}
	hour, _ = strconv.Atoi(m[1])
	minute, _ = strconv.Atoi(m[2])
	if hour > 23 {
		return 0, 0, false
	}
	return hour, minute, true
}

// SleepUntilReady computes how long to wait before polling: the announced
// end time-of-day on now's date, plus the post-processing buffer, minus now.
// A wake time already in the past yields zero.
func SleepUntilReady(endHour, endMinute int, buffer time.Duration, now time.Time) time.Duration {
	wake := time.Date(now.Year(), now.Month(), now.Day(), endHour, endMinute, 0, 0, now.Location()).Add(buffer)
	d := wake.Sub(now)
	if d <= 0 {
		return 0
	}
	return d
}

// FormatDuration renders a probed duration in seconds as "XmYs" for the
// success notification. Fractional seconds are truncated.
func FormatDuration(seconds float64) string {
	total := int(seconds)
	return fmt.Sprintf("%dm%ds", total/60, total%60)
}

// TransferOutcome reports how a single transfer attempt ended.
type TransferOutcome int

const (
	TransferSuccess TransferOutcome = iota
	TransferEmptyFile
	TransferError
)

// ValidationOutcome is the integrity validator's verdict on a local file.
type ValidationOutcome struct {
	Valid    bool
	Duration float64 // seconds, meaningful only when Valid
}
