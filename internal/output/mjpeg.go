package output

import (
	"io"
	"net"
	"strconv"
)

// Boundary separates the parts of the multipart stream
const Boundary = "123456789000000000000987654321"

// Prologue is written once to a new viewer in place of a net/http response
// header. It has no terminating blank line: the CRLF that opens every part
// ends the header block.
const Prologue = "HTTP/1.1 200 OK\r\n" +
	"Access-Control-Allow-Origin: *\r\n" +
	"Content-Type: multipart/x-mixed-replace; boundary=" + Boundary + "\r\n"

const (
	partOpen   = "\r\n--" + Boundary + "\r\n"
	partType   = "Content-Type: image/jpeg\r\n"
	partLength = "Content-Length: "
)

// AppendPartHeader appends the delimiter and part headers for a JPEG of n bytes
func AppendPartHeader(dst []byte, n int) []byte {
	dst = append(dst, partOpen...)
	dst = append(dst, partType...)
	dst = append(dst, partLength...)
	dst = strconv.AppendInt(dst, int64(n), 10)
	return append(dst, "\r\n\r\n"...)
}

// WritePart writes one multipart part carrying jpeg
func WritePart(w io.Writer, jpeg []byte) error {
	return writePart(w, AppendPartHeader(nil, len(jpeg)), jpeg)
}

func writePart(w io.Writer, header, jpeg []byte) error {
	bufs := net.Buffers{header, jpeg}
	_, err := bufs.WriteTo(w)
	return err
}
