package endf

import (
	"bytes"
	"strings"

	"github.com/saintfish/chardet"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/transform"
)

// decode converts raw file bytes to UTF-8 text. Evaluation files are not
// uniformly encoded, so the charset is detected first. Anything that cannot
// be detected or decoded is passed through unchanged: only fixed ASCII
// columns are read afterwards.
func decode(raw []byte) []byte {
	if len(raw) == 0 {
		return raw
	}
	res, err := chardet.NewTextDetector().DetectBest(raw)
	if err != nil || res == nil {
		return raw
	}
	switch strings.ToLower(res.Charset) {
	case "utf-8", "us-ascii", "ascii", "":
		return raw
	}
	enc, err := htmlindex.Get(res.Charset)
	if err != nil {
		return raw
	}
	out, _, err := transform.Bytes(enc.NewDecoder(), raw)
	if err != nil {
		return raw
	}
	return bytes.ToValidUTF8(out, nil)
}
