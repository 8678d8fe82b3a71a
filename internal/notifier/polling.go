package notifier

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

const (
	pollTimeout   = 30 * time.Second
	pollBackoff   = 5 * time.Second
	accessDenied  = "🚫 Acceso denegado."
	commandPrefix = "/"
)

// Command is a bot command received from the authorized chat.
type Command struct {
	Name string // without the leading slash or @botname suffix
	Args string
}

// Reply sends text back to the chat the command came from.
type Reply func(ctx context.Context, text string) error

// CommandHandler is called for every command from the authorized chat.
// Handlers run on their own goroutine so a slow command does not stall polling.
type CommandHandler func(ctx context.Context, cmd Command, reply Reply)

type telegramUpdate struct {
	UpdateID int `json:"update_id"`
	Message  *struct {
		Text string `json:"text"`
		Chat struct {
			ID int64 `json:"id"`
		} `json:"chat"`
	} `json:"message"`
}

// ParseCommand splits "/revisar@MyBot extra" into its name and arguments.
// It reports false for text that is not a command.
func ParseCommand(text string) (Command, bool) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, commandPrefix) || len(text) == 1 {
		return Command{}, false
	}
	name, args, _ := strings.Cut(text[1:], " ")
	name, _, _ = strings.Cut(name, "@")
	if name == "" {
		return Command{}, false
	}
	return Command{Name: strings.ToLower(name), Args: strings.TrimSpace(args)}, true
}

// StartPolling long-polls for updates and dispatches commands until ctx is
// cancelled. Updates queued before the call are dropped. It returns after
// every dispatched handler has finished.
func (t *TelegramNotifier) StartPolling(ctx context.Context, handler CommandHandler) {
	var wg sync.WaitGroup
	defer wg.Wait()

	offset, err := t.skipPending(ctx)
	if err != nil && ctx.Err() == nil {
		t.log.Warn("dropping pending updates", "error", err)
	}
	t.log.Info("telegram polling started")

	for {
		if ctx.Err() != nil {
			t.log.Info("telegram polling stopped")
			return
		}

		updates, err := t.getUpdates(ctx, offset, pollTimeout)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			t.log.Warn("polling request failed", "error", err)
			select {
			case <-ctx.Done():
			case <-time.After(pollBackoff):
			}
			continue
		}

		for _, u := range updates {
			offset = u.UpdateID + 1
			if u.Message == nil {
				continue
			}
			cmd, ok := ParseCommand(u.Message.Text)
			if !ok {
				continue
			}
			chatID := strconv.FormatInt(u.Message.Chat.ID, 10)
			if chatID != t.ChatID {
				t.log.Warn("command from unauthorized chat", "chat_id", chatID, "command", cmd.Name)
				if err := t.sendTo(ctx, chatID, accessDenied); err != nil {
					t.log.Error("send reply", "error", err)
				}
				continue
			}

			t.log.Info("received command", "command", cmd.Name)
			reply := func(ctx context.Context, text string) error {
				return t.sendTo(ctx, chatID, text)
			}
			wg.Add(1)
			go func() {
				defer wg.Done()
				handler(ctx, cmd, reply)
			}()
		}
	}
}

// skipPending acknowledges every update queued before startup and returns
// the offset to poll from.
func (t *TelegramNotifier) skipPending(ctx context.Context) (int, error) {
	updates, err := t.getUpdates(ctx, -1, 0)
	if err != nil {
		return 0, err
	}
	if len(updates) == 0 {
		return 0, nil
	}
	return updates[len(updates)-1].UpdateID + 1, nil
}

func (t *TelegramNotifier) getUpdates(ctx context.Context, offset int, timeout time.Duration) ([]telegramUpdate, error) {
	apiURL := fmt.Sprintf("%s?offset=%d&timeout=%d", t.endpoint("getUpdates"), offset, int(timeout.Seconds()))
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create polling request: %w", err)
	}
	resp, err := t.poller.Do(req)
	if err != nil {
		return nil, t.redact(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("getUpdates: status %d", resp.StatusCode)
	}

	var result struct {
		OK          bool             `json:"ok"`
		Result      []telegramUpdate `json:"result"`
		Description string           `json:"description"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode polling response: %w", err)
	}
	if !result.OK {
		return nil, fmt.Errorf("getUpdates: %s", result.Description)
	}
	return result.Result, nil
}
