package repo

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"go.uber.org/multierr"

	"github.com/odvcencio/it/pkg/errkind"
	"github.com/odvcencio/it/pkg/object"
)

const (
	commitMessagePrefix = "commit : "
	branchMessagePrefix = "BRANCH FROM "

	// structuredFields is the minimum token count of a well-formed record.
	structuredFields = 6
)

// LogRecord is one line of a branch history log:
//
//	<hash> <parent-or-zeros> <directory> <unix-time> <timezone> <message...>
//
// Lines with fewer than six tokens are kept verbatim in Raw with Structured
// unset.
type LogRecord struct {
	Hash       string
	Parent     string
	Dir        string
	Time       int64
	Timezone   string
	Message    string
	Raw        string
	Structured bool
}

// IsBranchCreation reports whether the record marks a branch being created
// rather than a commit.
func (rec LogRecord) IsBranchCreation() bool {
	return rec.Structured && strings.HasPrefix(rec.Message, branchMessagePrefix)
}

// HasParent reports whether Parent is a real commit rather than the zero
// sentinel.
func (rec LogRecord) HasParent() bool {
	return rec.Structured && rec.Parent != object.ZeroHash.String()
}

// History is the parsed log of one branch.
type History struct {
	Branch  string
	Records []LogRecord
	// NoCommits is set when the branch has no log file yet.
	NoCommits bool
}

// ParseLogLine splits a log line on whitespace. Six or more tokens are read
// positionally, with everything after the fifth rejoined as the message;
// anything shorter is passed through unchanged.
func ParseLogLine(line string) LogRecord {
	rec := LogRecord{Raw: line}
	parts := strings.Fields(line)
	if len(parts) < structuredFields {
		return rec
	}
	rec.Hash = parts[0]
	rec.Parent = parts[1]
	rec.Dir = parts[2]
	rec.Timezone = parts[4]
	rec.Message = strings.Join(parts[5:], " ")
	// A non-numeric time still renders; it just carries no timestamp.
	if ts, err := strconv.ParseInt(parts[3], 10, 64); err == nil {
		rec.Time = ts
	}
	rec.Structured = true
	return rec
}

// FormatTime renders the record's unix time in the record's own zone when
// that is a "+hhmm" offset, UTC otherwise. It returns "" for unstructured
// records.
func (rec LogRecord) FormatTime() string {
	if !rec.Structured {
		return ""
	}
	loc := time.UTC
	if zone, err := time.Parse("-0700", rec.Timezone); err == nil {
		_, offset := zone.Zone()
		loc = time.FixedZone(rec.Timezone, offset)
	}
	return time.Unix(rec.Time, 0).In(loc).Format("2006-01-02 15:04:05")
}

func (r *Repo) logPath(branch string) string {
	return filepath.Join(r.Dir, "logs", filepath.FromSlash(branchRef(branch)))
}

func formatLogLine(h, parent object.Hash, dir string, t time.Time, tz, message string) string {
	return fmt.Sprintf("%s %s %s %d %s %s\n", h, parent, dir, t.Unix(), tz, message)
}

// recordCommit appends a commit event to the branch's log. A root commit
// records the zero hash as its parent.
func (r *Repo) recordCommit(branch string, h, parent object.Hash, message string, now time.Time, tz string) error {
	line := formatLogLine(h, parent, r.RootDir, now, tz, commitMessagePrefix+singleLine(message))
	if err := r.appendLog(branch, line); err != nil {
		return fmt.Errorf("record commit: %w", err)
	}
	return nil
}

// recordBranch appends a branch-creation event to the new branch's log. The
// parent column holds the zero sentinel.
func (r *Repo) recordBranch(from, to string, h object.Hash) error {
	cfg, err := r.ReadConfig()
	if err != nil {
		return err
	}
	now := time.Now()
	message := fmt.Sprintf("%s%s -> %s", branchMessagePrefix, from, to)
	line := formatLogLine(h, object.ZeroHash, r.RootDir, now, cfg.timezone(now), message)
	if err := r.appendLog(to, line); err != nil {
		return fmt.Errorf("record branch: %w", err)
	}
	return nil
}

func (r *Repo) appendLog(branch, line string) (retErr error) {
	logPath := r.logPath(branch)
	if err := os.MkdirAll(filepath.Dir(logPath), 0o755); err != nil {
		return errkind.WrapIO("log mkdir", err)
	}

	f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return errkind.WrapIO("log open", err)
	}
	defer func() {
		retErr = multierr.Append(retErr, errkind.WrapIO("log close", f.Close()))
	}()

	// One write per record keeps each line intact under O_APPEND.
	if _, err := f.WriteString(line); err != nil {
		return errkind.WrapIO("log write", err)
	}
	return nil
}

// ReadLog returns the current branch's history in file order (oldest
// first). A branch without a log file yields a History with NoCommits set
// rather than an error.
func (r *Repo) ReadLog() (*History, error) {
	branch, err := r.CurrentBranch()
	if err != nil {
		return nil, fmt.Errorf("read log: %w", err)
	}
	return r.ReadBranchLog(branch)
}

// ReadBranchLog returns the history of the named branch.
func (r *Repo) ReadBranchLog(branch string) (*History, error) {
	hist := &History{Branch: branch}
	data, err := os.ReadFile(r.logPath(branch))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			hist.NoCommits = true
			return hist, nil
		}
		return nil, errkind.WrapIO("read log", err)
	}

	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		hist.Records = append(hist.Records, ParseLogLine(line))
	}
	return hist, nil
}

// singleLine folds a message onto one line so it cannot break the record
// framing.
func singleLine(message string) string {
	return strings.Join(strings.Fields(message), " ")
}
