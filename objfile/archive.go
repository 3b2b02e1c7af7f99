package objfile

import (
	"fmt"
	"io"

	"github.com/beevik/ez80toolchain/isa"
)

// Member describes one object file found inside a library archive: a
// concatenation of complete object files back to back, with no
// separate archive-level header.
type Member struct {
	Offset  int64 // byte offset of this member's header within the archive
	Size    int64 // total size of this member, header included
	Exports []string
	Externs []string
}

// ScanArchive walks an already-open archive stream header by header,
// computing each member's total size from its own section/table counts
// without decoding code or data bytes, and returns the discovered
// members in file order. An invalid magic mid-stream is a fatal error.
func ScanArchive(r io.ReadSeeker) ([]Member, error) {
	var members []Member
	var offset int64

	for {
		hdr := make([]byte, HeaderSize)
		n, err := io.ReadFull(r, hdr)
		if err == io.EOF || (err == io.ErrUnexpectedEOF && n == 0) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("objfile: scanning archive at %d: %w", offset, err)
		}

		f, size, err := decode(hdr, r)
		if err != nil {
			return nil, fmt.Errorf("objfile: scanning archive at %d: %w", offset, err)
		}

		m := Member{Offset: offset, Size: int64(size)}
		for _, s := range f.Symbols {
			if s.Flags == isa.SymExport {
				m.Exports = append(m.Exports, s.Name)
			}
		}
		for _, e := range f.Externs {
			m.Externs = append(m.Externs, e.Name)
		}
		members = append(members, m)

		offset += int64(size)
		if _, err := r.Seek(offset, io.SeekStart); err != nil {
			return nil, err
		}
	}

	return members, nil
}

// ReadMember decodes the complete object file for member m from the
// archive stream r.
func ReadMember(r io.ReadSeeker, m Member) (*File, error) {
	if _, err := r.Seek(m.Offset, io.SeekStart); err != nil {
		return nil, err
	}
	return Read(io.LimitReader(r, m.Size))
}
