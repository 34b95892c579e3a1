package savefile

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/yndnr/autosave-go/internal/core/domain"
)

const (
	// Version is written into the header line.
	Version = "V1"

	// Sentinel is the terminal line proving the file was completely written.
	Sentinel = "<END>\n"

	headerPrefix = "# autosave "
	labelPrefix  = "# label "
	arrayMarker  = "@array@"
	arrayEnd     = "@end@"

	// TimeFormat is used for the header timestamp.
	TimeFormat = time.RFC3339
)

// Meta describes a file beyond its points.
type Meta struct {
	Time  time.Time
	Label string
}

// Entry is one restorable point line.
type Entry struct {
	Name  string
	Value domain.Value
}

// Contents is a parsed save file.
type Contents struct {
	Version      string
	Timestamp    string
	Label        string
	NotConnected int
	// Entries holds valid points in file order.
	Entries []Entry
	// Skipped counts invalid ('#') point lines.
	Skipped int
}

// Lookup returns the last entry for name.
func (f *Contents) Lookup(name string) (domain.Value, bool) {
	for i := len(f.Entries) - 1; i >= 0; i-- {
		if f.Entries[i].Name == name {
			return f.Entries[i].Value, true
		}
	}
	return nil, false
}

// Render encodes points into the on-disk format, sentinel included.
func Render(points []domain.PointSnapshot, meta Meta) []byte {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "%s%s\tAutomatically generated - DO NOT MODIFY - %s\n",
		headerPrefix, Version, meta.Time.Format(TimeFormat))

	invalid := 0
	for _, p := range points {
		if !p.Valid {
			invalid++
		}
	}
	if invalid > 0 {
		fmt.Fprintf(&buf, "! %d point(s) not connected\n", invalid)
	}
	if meta.Label != "" {
		buf.WriteString(labelPrefix)
		buf.WriteString(oneLine(meta.Label))
		buf.WriteByte('\n')
	}

	for _, p := range points {
		writePoint(&buf, p)
	}

	buf.WriteString(Sentinel)
	return buf.Bytes()
}

func writePoint(buf *bytes.Buffer, p domain.PointSnapshot) {
	prefix := ""
	if !p.Valid {
		prefix = "#"
	}
	if !p.EverConnected {
		buf.WriteString(prefix)
		buf.WriteString(p.Name)
		buf.WriteByte('\n')
		return
	}
	if len(p.Value) == 1 && !p.Value.IsArray() && !needsQuoting(p.Value[0]) {
		buf.WriteString(prefix)
		buf.WriteString(p.Name)
		buf.WriteByte(' ')
		buf.WriteString(p.Value[0])
		buf.WriteByte('\n')
		return
	}

	fmt.Fprintf(buf, "%s%s %s %d\n", prefix, p.Name, arrayMarker, len(p.Value))
	for _, e := range p.Value {
		buf.WriteString(prefix)
		buf.WriteString(strconv.Quote(e))
		buf.WriteByte('\n')
	}
	buf.WriteString(prefix)
	buf.WriteString(arrayEnd)
	buf.WriteByte('\n')
}

func needsQuoting(s string) bool {
	return strings.ContainsAny(s, "\n\r") || strings.HasPrefix(s, arrayMarker)
}

func oneLine(s string) string {
	return strings.NewReplacer("\r", " ", "\n", " ").Replace(s)
}

// Parse decodes a save file. The data must end with the sentinel.
func Parse(r io.Reader) (*Contents, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, domain.ErrIoOpenFailed.Wrap(err)
	}
	if len(data) == 0 {
		return nil, domain.ErrIoVerifyFailed.WithDetails("empty file")
	}
	if !bytes.HasSuffix(data, []byte(Sentinel)) {
		return nil, domain.ErrIoVerifyFailed.WithDetails("missing " + strings.TrimSpace(Sentinel))
	}

	f := &Contents{}
	sc := bufio.NewScanner(bytes.NewReader(data[:len(data)-len(Sentinel)]))
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := sc.Text()
		switch {
		case line == "":
			continue
		case strings.HasPrefix(line, headerPrefix):
			rest := strings.TrimPrefix(line, headerPrefix)
			ver, ts, _ := strings.Cut(rest, "\t")
			f.Version = ver
			if i := strings.LastIndex(ts, " - "); i >= 0 {
				f.Timestamp = ts[i+3:]
			}
		case strings.HasPrefix(line, labelPrefix):
			f.Label = strings.TrimPrefix(line, labelPrefix)
		case strings.HasPrefix(line, "!"):
			fmt.Sscanf(line, "! %d", &f.NotConnected)
		case strings.HasPrefix(line, "#"):
			if isPointLine(line[1:]) {
				f.Skipped++
			}
		default:
			name, value, _ := strings.Cut(line, " ")
			if rest, ok := strings.CutPrefix(value, arrayMarker+" "); ok {
				n, err := strconv.Atoi(strings.TrimSpace(rest))
				if err != nil || n < 0 {
					return nil, domain.ErrIoVerifyFailed.WithDetailsf("line %d: bad array length %q", lineNo, rest)
				}
				elems := make(domain.Value, 0, n)
				for i := 0; i < n; i++ {
					if !sc.Scan() {
						return nil, domain.ErrIoVerifyFailed.WithDetailsf("line %d: truncated array %s", lineNo, name)
					}
					lineNo++
					e, err := strconv.Unquote(sc.Text())
					if err != nil {
						return nil, domain.ErrIoVerifyFailed.WithDetailsf("line %d: bad array element", lineNo)
					}
					elems = append(elems, e)
				}
				if !sc.Scan() || sc.Text() != arrayEnd {
					return nil, domain.ErrIoVerifyFailed.WithDetailsf("line %d: array %s not terminated", lineNo, name)
				}
				lineNo++
				f.Entries = append(f.Entries, Entry{Name: name, Value: elems})
				continue
			}
			f.Entries = append(f.Entries, Entry{Name: name, Value: domain.Value{value}})
		}
	}
	if err := sc.Err(); err != nil {
		return nil, domain.ErrIoOpenFailed.Wrap(err)
	}
	return f, nil
}

// isPointLine distinguishes "#name value" from "# comment" and from the
// continuation lines of an invalid array.
func isPointLine(s string) bool {
	if s == "" || s[0] == ' ' || s[0] == '"' || s == arrayEnd {
		return false
	}
	return true
}
