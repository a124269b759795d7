package ftpd

import (
	"fmt"
	"io"
	"os"
	"time"
)

// Listing Formatter (spec.md §4.6): Unix-ls-style LIST output and RFC 3659
// MLST/MLSD fact lines.

const (
	dateFormatStatTime = "Jan _2 15:04"   // entry's year matches the current year
	dateFormatStatYear = "Jan _2  2006"   // entry's year differs from the current year
	dateFormatMLSD     = "20060102150405" // YYYYMMDDHHMMSS; callers format times in UTC
)

// Fact is a MLST/MLSD key.
type Fact int

// The four facts this server can report, in spec.md §4.6's default order.
const (
	FactType Fact = iota
	FactSize
	FactModify
	FactPerm
)

// DefaultFacts is the session's initial fact set, reconfigurable via
// "OPTS MLST ...".
var DefaultFacts = []Fact{FactType, FactSize, FactModify, FactPerm} //nolint:gochecknoglobals

func factName(f Fact) string {
	switch f {
	case FactType:
		return "Type"
	case FactSize:
		return "Size"
	case FactModify:
		return "Modify"
	case FactPerm:
		return "Perm"
	default:
		return ""
	}
}

func parseFactNames(csv string) []Fact {
	names := map[string]Fact{"type": FactType, "size": FactSize, "modify": FactModify, "perm": FactPerm}

	var facts []Fact

	start := 0

	for i := 0; i <= len(csv); i++ {
		if i == len(csv) || csv[i] == ';' {
			tok := csv[start:i]
			start = i + 1

			if tok == "" {
				continue
			}

			lower := make([]byte, len(tok))
			for j := range tok {
				c := tok[j]
				if c >= 'A' && c <= 'Z' {
					c += 'a' - 'A'
				}

				lower[j] = c
			}

			if f, ok := names[string(lower)]; ok {
				facts = append(facts, f)
			}
		}
	}

	return facts
}

// writeLISTLine formats one Unix-ls-style entry for LIST, matching
// spec.md §4.6: 10-char mode string, a literal link count of 1, ftp:ftp as
// owner/group, the size right-justified in 12 columns, and a date whose
// format switches depending on whether the entry's year equals now's year.
func writeLISTLine(w io.Writer, file os.FileInfo, now time.Time) error {
	modTime := file.ModTime()

	dateFormat := dateFormatStatYear
	if modTime.Year() == now.Year() {
		dateFormat = dateFormatStatTime
	}

	_, err := fmt.Fprintf(w, "%s 1 ftp ftp %12d %s %s\r\n",
		file.Mode(), file.Size(), modTime.Format(dateFormat), file.Name())

	return err
}

// writeLISTing writes every entry, directories before regular files, in
// directory-iteration order within each group (spec.md §4.6), skipping
// nothing here — stat failures are filtered out by the caller before the
// slice reaches this function.
func writeLISTing(w io.Writer, files []os.FileInfo, now time.Time) error {
	ordered := orderDirsFirst(files)

	for _, f := range ordered {
		if err := writeLISTLine(w, f, now); err != nil {
			return err
		}
	}

	return nil
}

func orderDirsFirst(files []os.FileInfo) []os.FileInfo {
	out := make([]os.FileInfo, 0, len(files))

	for _, f := range files {
		if f.IsDir() {
			out = append(out, f)
		}
	}

	for _, f := range files {
		if !f.IsDir() {
			out = append(out, f)
		}
	}

	return out
}

// entryType classifies a listing entry for the Type fact.
type entryType int

const (
	entryFile entryType = iota
	entryDir
	entryCdir
	entryPdir
)

func (t entryType) String() string {
	switch t {
	case entryDir:
		return "dir"
	case entryCdir:
		return "cdir"
	case entryPdir:
		return "pdir"
	default:
		return "file"
	}
}

// permForEntry intersects the resolved permission set with the letters
// meaningful for this entry kind: rwadf for files, eldfm for directories
// (spec.md §4.6 "Perm").
func permForEntry(attrs Attrs, isDir bool) string {
	universe := "rwadf"
	if isDir {
		universe = "eldfm"
	}

	out := make([]byte, 0, len(universe))

	for i := 0; i < len(universe); i++ {
		for j := 0; j < len(attrs.Permission); j++ {
			if universe[i] == attrs.Permission[j] {
				out = append(out, universe[i])

				break
			}
		}
	}

	return string(out)
}

// writeMLSxLine writes one "fact=value;fact=value;... name" line for the
// requested fact set.
func writeMLSxLine(w io.Writer, name string, kind entryType, size int64, modTime time.Time, attrs Attrs, facts []Fact) error {
	line := ""

	for _, f := range facts {
		switch f {
		case FactType:
			line += fmt.Sprintf("Type=%s;", kind)
		case FactSize:
			if kind == entryFile {
				line += fmt.Sprintf("Size=%d;", size)
			}
		case FactModify:
			line += fmt.Sprintf("Modify=%s;", modTime.UTC().Format(dateFormatMLSD))
		case FactPerm:
			isDir := kind == entryDir || kind == entryCdir || kind == entryPdir
			line += fmt.Sprintf("Perm=%s;", permForEntry(attrs, isDir))
		}
	}

	_, err := fmt.Fprintf(w, "%s %s\r\n", line, name)

	return err
}

// writeMLSD writes the full MLSD body: a cdir entry for dirPath, a pdir
// entry for its parent (omitted if parent == dirPath, i.e. at the root),
// then one entry per file (spec.md §4.6).
func writeMLSD(w io.Writer, dirAttrs Attrs, dirPath, parentPath string, files []os.FileInfo, now time.Time, facts []Fact) error {
	if err := writeMLSxLine(w, ".", entryCdir, 0, now, dirAttrs, facts); err != nil {
		return err
	}

	if parentPath != dirPath {
		if err := writeMLSxLine(w, "..", entryPdir, 0, now, dirAttrs, facts); err != nil {
			return err
		}
	}

	for _, f := range files {
		kind := entryFile
		if f.IsDir() {
			kind = entryDir
		}

		if err := writeMLSxLine(w, f.Name(), kind, f.Size(), f.ModTime(), dirAttrs, facts); err != nil {
			return err
		}
	}

	return nil
}

func writeNLST(w io.Writer, files []os.FileInfo) error {
	for _, f := range files {
		if _, err := fmt.Fprintf(w, "%s\r\n", f.Name()); err != nil {
			return err
		}
	}

	return nil
}
