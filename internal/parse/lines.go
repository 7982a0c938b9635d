package parse

import (
	"bufio"
	"errors"
	"io"
	"strings"
	"unicode"
)

// directional marks injected by some exporters
var markStripper = strings.NewReplacer("\u200e", "", "\u200f", "")

// normalizeLine strips direction marks and trailing whitespace.
// An empty result means the line is skipped.
func normalizeLine(raw string) string {
	return strings.TrimRightFunc(markStripper.Replace(raw), unicode.IsSpace)
}

// eachLine calls fn for every line of r. Lines end in "\n", "\r\n" or a
// lone "\r" and have no length limit.
func eachLine(r io.Reader, fn func(line string)) error {
	br := bufio.NewReader(r)
	for {
		chunk, err := br.ReadString('\n')
		if chunk != "" {
			chunk = strings.TrimSuffix(chunk, "\n")
			chunk = strings.TrimSuffix(chunk, "\r")
			// any "\r" left is a line ending of its own
			for _, line := range strings.Split(chunk, "\r") {
				fn(line)
			}
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
	}
}
