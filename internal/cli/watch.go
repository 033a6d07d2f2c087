package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/petra184/mobile-app-sub002/internal/app"
	"github.com/petra184/mobile-app-sub002/internal/model"
	"github.com/petra184/mobile-app-sub002/internal/realtime"
)

type watchLine struct {
	Type    string                     `json:"type"`
	Domain  realtime.Domain            `json:"domain,omitempty"`
	Kind    realtime.EventKind         `json:"kind,omitempty"`
	Payload json.RawMessage            `json:"payload,omitempty"`
	Status  map[string]realtime.Status `json:"status,omitempty"`
	Title   string                     `json:"title,omitempty"`
	Message string                     `json:"message,omitempty"`
}

func newWatchCommand(opts *RootOptions) *cobra.Command {
	var duration time.Duration
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Print realtime events, channel status and inbox entries until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, func(ctx context.Context, a *app.App, out *OutputFormatter) error {
				if duration > 0 {
					var cancel context.CancelFunc
					ctx, cancel = context.WithTimeout(ctx, duration)
					defer cancel()
				}
				watch(ctx, a, out)
				return nil
			})
		},
	}
	cmd.Flags().DurationVar(&duration, "for", 0, "stop after this long (0 runs until interrupted)")
	return cmd
}

// watch subscribes a printer to every domain, reopens the channels so it
// takes effect, and blocks until ctx is done.
func watch(ctx context.Context, a *app.App, out *OutputFormatter) {
	var mu sync.Mutex
	emit := func(l watchLine, text string, args ...any) {
		mu.Lock()
		defer mu.Unlock()
		if out.JSON() {
			json.NewEncoder(out.Writer).Encode(l)
			return
		}
		fmt.Fprintf(out.Writer, text+"\n", args...)
	}

	for _, d := range realtime.Domains {
		a.Subscribe(d, func(e realtime.Event) {
			emit(watchLine{Type: "event", Domain: e.Domain, Kind: e.Kind, Payload: e.Payload},
				"%-14s %-8s %s", e.Domain, e.Kind, e.Payload)
		})
	}

	a.Realtime.OnStatusChange(func(status map[string]realtime.Status) {
		emit(watchLine{Type: "status", Status: status}, "status         %s", formatStatus(status))
	})

	seen := make(map[string]bool)
	a.Inbox.OnChange(func(items []model.InboxNotification) {
		mu.Lock()
		var fresh []model.InboxNotification
		for i := len(items) - 1; i >= 0; i-- {
			if !seen[items[i].ID] {
				seen[items[i].ID] = true
				fresh = append(fresh, items[i])
			}
		}
		mu.Unlock()
		for _, n := range fresh {
			emit(watchLine{Type: "inbox", Title: n.Title, Message: n.Message}, "inbox          %s: %s", n.Title, n.Message)
		}
	})

	a.Resubscribe()
	<-ctx.Done()
}

func formatStatus(status map[string]realtime.Status) string {
	names := make([]string, 0, len(status))
	for name := range status {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, name+"="+string(status[name]))
	}
	return strings.Join(parts, " ")
}
