package git

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
)

// parseStatus parses `git status --porcelain=v2 --branch -z` output.
//
// Records are NUL terminated. Rename and copy records are followed by an
// extra record holding the original path. Ignored entries are never requested;
// ignore state comes from check-ignore.
func parseStatus(out []byte) (*Status, error) {
	status := &Status{}
	records := bytes.Split(out, []byte{0})

	for i := 0; i < len(records); i++ {
		rec := string(records[i])
		if rec == "" {
			continue
		}

		switch rec[0] {
		case '#':
			parseHeader(status, rec)

		case '1':
			// 1 <XY> <sub> <mH> <mI> <mW> <hH> <hI> <path>
			fields := strings.SplitN(rec, " ", 9)
			if len(fields) < 9 || len(fields[1]) != 2 {
				return nil, fmt.Errorf("malformed status record %q", rec)
			}
			status.add(fields[1], fields[8], "")

		case '2':
			// 2 <XY> <sub> <mH> <mI> <mW> <hH> <hI> <X><score> <path>, then <origPath>
			fields := strings.SplitN(rec, " ", 10)
			if len(fields) < 10 || len(fields[1]) != 2 || i+1 >= len(records) {
				return nil, fmt.Errorf("malformed status record %q", rec)
			}
			i++
			status.add(fields[1], fields[9], string(records[i]))

		case 'u':
			// u <XY> <sub> <m1> <m2> <m3> <mW> <h1> <h2> <h3> <path>
			fields := strings.SplitN(rec, " ", 11)
			if len(fields) < 11 {
				return nil, fmt.Errorf("malformed status record %q", rec)
			}
			status.WorkingTree = append(status.WorkingTree, FileStatus{
				Path:   fields[10],
				Status: StatusConflict,
			})

		case '?':
			if len(rec) > 2 {
				status.WorkingTree = append(status.WorkingTree, FileStatus{
					Path:   rec[2:],
					Status: StatusUntracked,
				})
			}

		default:
			return nil, fmt.Errorf("unknown status record %q", rec)
		}
	}

	return status, nil
}

// add appends the index and working-tree entries described by xy.
func (s *Status) add(xy, path, origPath string) {
	if x := xy[0]; x != '.' {
		fs := FileStatus{Path: path, Status: charToStatus(x), Staged: true}
		if fs.Status == StatusRenamed || fs.Status == StatusCopied {
			fs.OldPath = origPath
		}
		s.Index = append(s.Index, fs)
	}
	if y := xy[1]; y != '.' {
		fs := FileStatus{Path: path, Status: charToStatus(y)}
		if fs.Status == StatusRenamed || fs.Status == StatusCopied {
			fs.OldPath = origPath
		}
		s.WorkingTree = append(s.WorkingTree, fs)
	}
}

func parseHeader(s *Status, rec string) {
	fields := strings.Fields(rec)
	if len(fields) < 3 {
		return
	}
	switch fields[1] {
	case "branch.oid":
		if fields[2] != "(initial)" {
			s.HeadCommit = fields[2]
		}
	case "branch.head":
		if fields[2] == "(detached)" {
			s.Detached = true
		} else {
			s.Branch = fields[2]
		}
	case "branch.upstream":
		s.Upstream = fields[2]
	case "branch.ab":
		if len(fields) >= 4 {
			s.Ahead, _ = strconv.Atoi(strings.TrimPrefix(fields[2], "+"))
			s.Behind, _ = strconv.Atoi(strings.TrimPrefix(fields[3], "-"))
		}
	}
}

// charToStatus converts a porcelain status character to StatusCode.
func charToStatus(c byte) StatusCode {
	switch c {
	case 'M', 'T':
		return StatusModified
	case 'A':
		return StatusAdded
	case 'D':
		return StatusDeleted
	case 'R':
		return StatusRenamed
	case 'C':
		return StatusCopied
	case 'U':
		return StatusConflict
	default:
		return StatusUnmodified
	}
}
