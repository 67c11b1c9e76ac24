// Command livecli follows a live alignment session from the terminal. It
// connects to a versecast server, subscribes to a document, and prints
// every frame: matched segments with their scores, skipped segments, and
// rejected cycles when -verbose is set.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

// frame mirrors the server's wire frames loosely; unknown fields are
// ignored so the CLI keeps working across server versions.
type frame struct {
	Type  string `json:"type"`
	Error string `json:"error,omitempty"`

	DocumentID int64  `json:"document_id,omitempty"`
	Title      string `json:"title,omitempty"`
	Segments   int    `json:"segments,omitempty"`

	Spoken    string          `json:"spoken,omitempty"`
	Score     float64         `json:"score,omitempty"`
	Matched   bool            `json:"matched,omitempty"`
	Threshold float64         `json:"threshold,omitempty"`
	Segment   json.RawMessage `json:"segment,omitempty"`
	Skipped   []struct {
		Order int    `json:"order"`
		Text  string `json:"text"`
	} `json:"skipped_segments,omitempty"`
}

type segmentBody struct {
	Order       int    `json:"order"`
	Text        string `json:"text"`
	Translation string `json:"translation,omitempty"`
}

func main() {
	server := flag.String("server", "ws://localhost:8080", "versecast server base URL")
	document := flag.Int64("document", 0, "document ID to follow")
	verbose := flag.Bool("verbose", false, "print rejected cycles too")
	flag.Parse()

	if *document == 0 {
		fmt.Fprintln(os.Stderr, "livecli: -document is required")
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := follow(ctx, *server, *document, *verbose); err != nil {
		fmt.Fprintf(os.Stderr, "livecli: %v\n", err)
		os.Exit(1)
	}
}

func follow(ctx context.Context, server string, documentID int64, verbose bool) error {
	url := fmt.Sprintf("%s/live/%d", strings.TrimRight(server, "/"), documentID)
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", url, err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "done")

	for {
		var f frame
		if err := wsjson.Read(ctx, conn, &f); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			var closeErr websocket.CloseError
			if errors.As(err, &closeErr) && closeErr.Code == websocket.StatusNormalClosure {
				return nil
			}
			return fmt.Errorf("read frame: %w", err)
		}
		printFrame(f, verbose)
	}
}

func printFrame(f frame, verbose bool) {
	switch f.Type {
	case "started":
		fmt.Printf("following %q (%d segments)\n", f.Title, f.Segments)

	case "error":
		fmt.Printf("server error: %s\n", f.Error)

	case "event":
		for _, s := range f.Skipped {
			fmt.Printf("  ~~ skipped [%d] %s\n", s.Order, s.Text)
		}
		if f.Matched && f.Segment != nil {
			var seg segmentBody
			if err := json.Unmarshal(f.Segment, &seg); err == nil {
				fmt.Printf("  >> [%d] %s (score %.2f)\n", seg.Order, seg.Text, f.Score)
				if seg.Translation != "" {
					fmt.Printf("     %s\n", seg.Translation)
				}
			}
		} else if verbose {
			fmt.Printf("  .. heard %q (score %.2f, threshold %.2f)\n", f.Spoken, f.Score, f.Threshold)
		}
	}
}
