package wire

import "io"

// View is a parsing cursor over a Wire. It lives on the stack and is
// cheap to copy; Delegate/Range hand back sub-views without copying
// the underlying bytes.
type View struct {
	wire  Wire
	apos  int // absolute position from the start of the wire
	rpos  int // position within the current segment
	seg   int // current segment index
	start int // first allowed absolute position
	end   int // first disallowed absolute position
}

// NewView wraps wire in a fresh View spanning all of it.
func NewView(w Wire) View {
	end := 0
	for _, seg := range w {
		end += len(seg)
	}
	return View{wire: w, end: end}
}

// NewBufferView wraps a single contiguous Buffer in a View.
func NewBufferView(buf Buffer) View {
	return NewView(Wire{buf})
}

// IsEOF reports whether the cursor has consumed the whole view.
func (r *View) IsEOF() bool { return r.apos >= r.end }

// Pos returns the offset relative to the start of the view.
func (r *View) Pos() int { return r.apos - r.start }

// Length returns the total span of the view.
func (r *View) Length() int { return r.end - r.start }

// ReadByte reads and consumes a single byte.
func (r *View) ReadByte() (byte, error) {
	if r.IsEOF() {
		return 0, io.EOF
	}
	b := r.wire[r.seg][r.rpos]
	r.apos++
	r.rpos++
	if r.rpos == len(r.wire[r.seg]) {
		r.rpos = 0
		r.seg++
	}
	return b, nil
}

// UnreadByte rewinds the cursor by one byte. Only valid immediately
// after a successful ReadByte, to satisfy io.ByteScanner.
func (r *View) UnreadByte() error {
	if r.apos <= r.start {
		return io.EOF
	}
	r.apos--
	if r.rpos == 0 {
		r.seg--
		r.rpos = len(r.wire[r.seg]) - 1
	} else {
		r.rpos--
	}
	return nil
}

// Read implements io.Reader by copying into p.
func (r *View) Read(p []byte) (int, error) {
	if r.IsEOF() {
		return 0, io.EOF
	}
	n := 0
	for n < len(p) && !r.IsEOF() {
		seg := r.readSeg(len(p) - n)
		n += copy(p[n:], seg)
	}
	return n, nil
}

// readSeg reads up to size bytes from the current segment without copy.
func (r *View) readSeg(size int) []byte {
	segleft := len(r.wire[r.seg]) - r.rpos
	if size < segleft {
		ret := r.wire[r.seg][r.rpos : r.rpos+size]
		r.apos += size
		r.rpos += size
		return ret
	}
	ret := r.wire[r.seg][r.rpos:]
	r.apos += segleft
	r.rpos = 0
	r.seg++
	return ret
}

// Skip advances the cursor by n bytes without returning them.
func (r *View) Skip(n int) error {
	left := n
	for left > 0 {
		if r.IsEOF() {
			return ErrBufferOverflow
		}
		segleft := len(r.wire[r.seg]) - r.rpos
		if left < segleft {
			r.apos += left
			r.rpos += left
			return nil
		}
		left -= segleft
		r.apos += segleft
		r.rpos = 0
		r.seg++
	}
	return nil
}

// ReadWire reads size bytes as a Wire of zero-copy slices.
func (r *View) ReadWire(size int) (Wire, error) {
	if size > r.end-r.apos {
		return nil, ErrBufferOverflow
	}
	probe := *r
	segcount := 0
	left := size
	for left > 0 {
		segcount++
		segleft := len(probe.wire[probe.seg]) - probe.rpos
		if left < segleft {
			break
		}
		left -= segleft
		probe.rpos = 0
		probe.seg++
	}

	ret := make(Wire, segcount)
	remaining := size
	for i := 0; i < segcount; i++ {
		ret[i] = r.readSeg(remaining)
		remaining -= len(ret[i])
	}
	return ret, nil
}

// ReadBuf reads size contiguous bytes, copying only if they straddle
// more than one underlying segment.
func (r *View) ReadBuf(size int) (Buffer, error) {
	if size > r.end-r.apos {
		return nil, ErrBufferOverflow
	}
	if size == 0 {
		return Buffer{}, nil
	}
	if size <= len(r.wire[r.seg])-r.rpos {
		ret := r.wire[r.seg][r.rpos : r.rpos+size]
		r.apos += size
		r.rpos += size
		if r.rpos == len(r.wire[r.seg]) {
			r.rpos = 0
			r.seg++
		}
		return ret, nil
	}

	ret := make([]byte, size)
	written := 0
	for written < size {
		seg := r.readSeg(size - written)
		written += copy(ret[written:], seg)
	}
	return ret, nil
}

// Range returns the bytes between start and end (relative to the
// view's own start) as a Wire, without disturbing r's own cursor.
func (r *View) Range(start, end int) Wire {
	probe := View{wire: r.wire, end: r.end}
	if err := probe.Skip(r.start + start); err != nil {
		return Wire{}
	}
	w, err := probe.ReadWire(end - start)
	if err != nil {
		return Wire{}
	}
	return w
}

// Delegate returns a new View over [Pos(), Pos()+l) and advances r past it.
func (r *View) Delegate(l int) ParseReader {
	if l > r.end-r.apos {
		return &View{}
	}
	ret := *r
	ret.start = ret.apos
	ret.end = ret.apos + l
	r.Skip(l)
	return &ret
}
