package filter

import (
	"bytes"
	"encoding/base64"
	"errors"
	"io"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net/mail"
	"net/textproto"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

const peMimeType = "application/vnd.microsoft.portable-executable"

var executableExtensions = map[string]bool{
	".exe": true,
	".dll": true,
	".scr": true,
	".sys": true,
	".cpl": true,
	".ocx": true,
}

// attachment is a decoded MIME part that carries a file
type attachment struct {
	Name      string
	Data      []byte
	Truncated bool
}

// extractAttachments walks every MIME part of msg, descending into nested
// multiparts, and returns the decoded parts that carry a filename or are
// not text. Parts larger than maxSize are returned truncated and flagged.
func extractAttachments(msg *mail.Message, maxSize int64) ([]attachment, error) {
	return walkPart(textproto.MIMEHeader(msg.Header), msg.Body, maxSize, 0)
}

func walkPart(header textproto.MIMEHeader, body io.Reader, maxSize int64, depth int) ([]attachment, error) {
	if depth > 10 {
		return nil, errors.New("MIME nesting too deep")
	}

	mediaType, params, err := mime.ParseMediaType(header.Get("Content-Type"))
	if err != nil {
		mediaType = "text/plain"
	}

	if strings.HasPrefix(mediaType, "multipart/") {
		boundary := params["boundary"]
		if boundary == "" {
			return nil, nil
		}

		var out []attachment
		mr := multipart.NewReader(body, boundary)
		for {
			part, err := mr.NextPart()
			if err == io.EOF {
				break
			}
			if err != nil {
				return out, err
			}
			found, err := walkPart(part.Header, part, maxSize, depth+1)
			out = append(out, found...)
			if err != nil {
				return out, err
			}
		}
		return out, nil
	}

	name := partFilename(header, params)
	if name == "" && strings.HasPrefix(mediaType, "text/") {
		return nil, nil
	}

	data, truncated, err := readPart(decodeTransfer(header, body), maxSize)
	if err != nil {
		return nil, err
	}
	if name == "" {
		name = "attachment"
	}
	return []attachment{{Name: name, Data: data, Truncated: truncated}}, nil
}

func partFilename(header textproto.MIMEHeader, ctParams map[string]string) string {
	if _, params, err := mime.ParseMediaType(header.Get("Content-Disposition")); err == nil {
		if name := params["filename"]; name != "" {
			return filepath.Base(name)
		}
	}
	if name := ctParams["name"]; name != "" {
		return filepath.Base(name)
	}
	return ""
}

// decodeTransfer undoes base64 and quoted-printable encodings.
// multipart.Reader already strips quoted-printable from the parts it
// returns and drops the header, so this only sees it on top-level bodies.
func decodeTransfer(header textproto.MIMEHeader, body io.Reader) io.Reader {
	switch strings.ToLower(strings.TrimSpace(header.Get("Content-Transfer-Encoding"))) {
	case "base64":
		return base64.NewDecoder(base64.StdEncoding, &whitespaceStripper{r: body})
	case "quoted-printable":
		return quotedprintable.NewReader(body)
	default:
		return body
	}
}

func readPart(r io.Reader, maxSize int64) ([]byte, bool, error) {
	if maxSize <= 0 {
		data, err := io.ReadAll(r)
		return data, false, err
	}
	data, err := io.ReadAll(io.LimitReader(r, maxSize+1))
	if err != nil {
		return nil, false, err
	}
	if int64(len(data)) > maxSize {
		return data[:maxSize], true, nil
	}
	return data, false, nil
}

// isExecutable reports whether an attachment is a PE sample worth scanning
func isExecutable(a attachment) bool {
	if executableExtensions[strings.ToLower(filepath.Ext(a.Name))] {
		return true
	}
	return mimetype.Detect(a.Data).Is(peMimeType)
}

// whitespaceStripper drops CR, LF, tabs and spaces from base64 bodies
type whitespaceStripper struct {
	r io.Reader
}

func (w *whitespaceStripper) Read(p []byte) (int, error) {
	for {
		n, err := w.r.Read(p)
		kept := 0
		for _, b := range p[:n] {
			switch b {
			case '\r', '\n', ' ', '\t':
			default:
				p[kept] = b
				kept++
			}
		}
		if kept > 0 || err != nil {
			return kept, err
		}
	}
}

// rewriteHeaders prepends add to the raw message and drops any existing
// header whose name is listed in drop, including folded continuation lines.
func rewriteHeaders(raw []byte, add [][2]string, drop []string) []byte {
	headerEnd, sepLen := bytes.Index(raw, []byte("\r\n\r\n")), 4
	if headerEnd == -1 {
		headerEnd, sepLen = bytes.Index(raw, []byte("\n\n")), 2
	}

	var head, body []byte
	if headerEnd == -1 {
		head = raw
	} else {
		head = raw[:headerEnd]
		body = raw[headerEnd+sepLen:]
	}

	var out bytes.Buffer
	for _, h := range add {
		out.WriteString(h[0])
		out.WriteString(": ")
		out.WriteString(h[1])
		out.WriteString("\r\n")
	}

	skipping := false
	for _, line := range strings.Split(strings.ReplaceAll(string(head), "\r\n", "\n"), "\n") {
		if line == "" {
			continue
		}
		if line[0] == ' ' || line[0] == '\t' {
			if !skipping {
				out.WriteString(line)
				out.WriteString("\r\n")
			}
			continue
		}
		skipping = false
		if name, _, ok := strings.Cut(line, ":"); ok {
			for _, d := range drop {
				if strings.EqualFold(strings.TrimSpace(name), d) {
					skipping = true
					break
				}
			}
		}
		if !skipping {
			out.WriteString(line)
			out.WriteString("\r\n")
		}
	}

	out.WriteString("\r\n")
	out.Write(body)
	return out.Bytes()
}
