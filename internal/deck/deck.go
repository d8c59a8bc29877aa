// Package deck builds processing-program input decks.
package deck

import "strings"

// Card is one input line of a module block.
type Card struct {
	Text string

	// Provenance marks the informational comment card carrying host and
	// time. It is excluded from fingerprints.
	Provenance bool
}

// Block is one module invocation followed by its cards.
type Block struct {
	Module string
	Cards  []Card
}

// Deck is an ordered list of blocks. The terminating "stop" is implicit.
type Deck struct {
	Blocks []Block
}

// Lines returns the deck as text lines, ending with "stop".
func (d Deck) Lines() []string {
	var out []string
	for _, b := range d.Blocks {
		out = append(out, b.Module)
		for _, c := range b.Cards {
			out = append(out, c.Text)
		}
	}
	return append(out, "stop")
}

// String renders the deck with "\n" separators and no trailing newline.
func (d Deck) String() string {
	return strings.Join(d.Lines(), "\n")
}

// Modules returns the module names in order.
func (d Deck) Modules() []string {
	out := make([]string, len(d.Blocks))
	for i, b := range d.Blocks {
		out[i] = b.Module
	}
	return out
}

func block(module string, cards ...string) Block {
	b := Block{Module: module, Cards: make([]Card, len(cards))}
	for i, c := range cards {
		b.Cards[i] = Card{Text: c}
	}
	return b
}
