package deck

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
)

// modules lists the program modules a deck line may open.
var modules = map[string]bool{
	"moder": true, "reconr": true, "broadr": true, "heatr": true,
	"gaspr": true, "purr": true, "unresr": true, "thermr": true,
	"groupr": true, "errorr": true, "covr": true, "acer": true,
	"viewr": true, "plotr": true,
}

var provenanceCard = regexp.MustCompile(`^'[^']*, NJOY\d+, [^']*'/$`)

// Parse reads a deck written by Deck.String. Lines after "stop" are ignored.
func Parse(r io.Reader) (Deck, error) {
	var d Deck
	sc := bufio.NewScanner(r)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimRight(sc.Text(), "\r")
		word := strings.TrimSpace(line)
		if word == "stop" {
			return d, nil
		}
		if modules[word] {
			d.Blocks = append(d.Blocks, Block{Module: word})
			continue
		}
		if len(d.Blocks) == 0 {
			return Deck{}, fmt.Errorf("line %d: card %q before any module", lineNo, line)
		}
		b := &d.Blocks[len(d.Blocks)-1]
		b.Cards = append(b.Cards, Card{Text: line, Provenance: provenanceCard.MatchString(line)})
	}
	if err := sc.Err(); err != nil {
		return Deck{}, err
	}
	return Deck{}, fmt.Errorf("deck is not terminated by stop")
}

// FingerprintFile parses the deck at path and returns its Fingerprint.
func FingerprintFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	d, err := Parse(f)
	if err != nil {
		return "", fmt.Errorf("%s: %w", path, err)
	}
	return Fingerprint(d), nil
}
