package main

import (
	"fmt"
	"io"

	"github.com/charmbracelet/glamour"
)

// printMarkdown styles md for the terminal unless --plain is set. Rendering
// failures fall back to the raw text.
func printMarkdown(w io.Writer, md string) error {
	if plainWrite {
		_, err := fmt.Fprintln(w, md)
		return err
	}

	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(80),
	)
	if err == nil {
		if out, rerr := renderer.Render(md); rerr == nil {
			_, err = fmt.Fprint(w, out)
			return err
		}
	}
	_, err = fmt.Fprintln(w, md)
	return err
}
