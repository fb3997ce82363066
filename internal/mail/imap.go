package mail

import (
	"context"
	"fmt"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"

	"github.com/linnemanlabs/go-core/log"

	"github.com/linnemanlabs/mailroom/internal/incident"
)

// FetcherConfig holds IMAP connection settings.
type FetcherConfig struct {
	Addr        string // host:port, implicit TLS
	Username    string
	Password    string
	Mailbox     string
	SelfAddress string // the agent's own sender address, to break reply loops
}

// Fetcher polls an IMAP mailbox for unread messages. Each operation opens a
// fresh connection and logs out when done.
//
// The \Seen flag is deliberately not set during Fetch for messages handed to
// the caller: a message only leaves the UNSEEN pool once the caller reports
// it terminal via MarkSeen, so an incident whose acknowledgement failed is
// re-fetched on the next cycle. Only messages the fetcher itself discards
// (auto-generated, self-sent, unparsable) are marked immediately. The dedup
// ledger stays authoritative for idempotency because IMAP flags can be lost
// or reset.
type Fetcher struct {
	cfg    FetcherConfig
	logger log.Logger
}

// NewFetcher creates an IMAP fetcher.
func NewFetcher(cfg FetcherConfig, logger log.Logger) *Fetcher {
	if logger == nil {
		logger = log.Nop()
	}
	return &Fetcher{cfg: cfg, logger: logger}
}

// connect dials, authenticates and selects the configured mailbox. The caller
// owns the returned client and must Logout.
func (f *Fetcher) connect() (*client.Client, error) {
	c, err := client.DialTLS(f.cfg.Addr, nil)
	if err != nil {
		return nil, fmt.Errorf("imap dial %s: %w", f.cfg.Addr, err)
	}
	if err := c.Login(f.cfg.Username, f.cfg.Password); err != nil {
		_ = c.Logout()
		return nil, fmt.Errorf("imap login: %w", err)
	}
	if _, err := c.Select(f.cfg.Mailbox, false); err != nil {
		_ = c.Logout()
		return nil, fmt.Errorf("imap select %s: %w", f.cfg.Mailbox, err)
	}
	return c, nil
}

// Fetch implements incident.Fetcher. The underlying IMAP client has no
// context support; ctx is checked between protocol steps so shutdown does
// not hang on a slow server mid-batch.
func (f *Fetcher) Fetch(ctx context.Context) ([]incident.RawMessage, error) {
	c, err := f.connect()
	if err != nil {
		return nil, err
	}
	defer func() { _ = c.Logout() }()

	criteria := imap.NewSearchCriteria()
	criteria.WithoutFlags = []string{imap.SeenFlag}
	uids, err := c.UidSearch(criteria)
	if err != nil {
		return nil, fmt.Errorf("imap search unseen: %w", err)
	}
	if len(uids) == 0 {
		return nil, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f.logger.Info(ctx, "unread messages found", "count", len(uids), "mailbox", f.cfg.Mailbox)

	seqset := new(imap.SeqSet)
	seqset.AddNum(uids...)

	section := &imap.BodySectionName{}
	items := []imap.FetchItem{section.FetchItem(), imap.FetchUid}

	messages := make(chan *imap.Message, 10)
	done := make(chan error, 1)
	go func() { done <- c.UidFetch(seqset, items, messages) }()

	var out []incident.RawMessage
	var discarded []uint32
	for msg := range messages {
		body := msg.GetBody(section)
		if body == nil {
			f.logger.Warn(ctx, "message without body section", "uid", msg.Uid)
			discarded = append(discarded, msg.Uid)
			continue
		}

		raw, skip, err := parseMessage(body, msg.Uid, f.cfg.SelfAddress)
		if err != nil {
			// Terminal: a broken payload cannot wedge the inbox.
			f.logger.Warn(ctx, "unparsable message", "uid", msg.Uid, "error", err)
			discarded = append(discarded, msg.Uid)
			continue
		}
		if skip {
			f.logger.Info(ctx, "skipping auto-generated or self-sent message", "uid", msg.Uid)
			discarded = append(discarded, msg.Uid)
			continue
		}
		out = append(out, raw)
	}
	if err := <-done; err != nil {
		return nil, fmt.Errorf("imap fetch: %w", err)
	}

	// Discarded messages never reach the caller, so they are marked seen here
	// on the live session. Kept messages stay UNSEEN until MarkSeen.
	if len(discarded) > 0 {
		if err := storeSeen(c, discarded); err != nil {
			f.logger.Warn(ctx, "failed to mark discarded messages seen", "count", len(discarded), "error", err)
		}
	}

	return out, nil
}

// MarkSeen implements incident.Fetcher. It flags the given messages \Seen so
// future UNSEEN searches skip them; the caller invokes it only for messages
// whose processing outcome is terminal.
func (f *Fetcher) MarkSeen(ctx context.Context, uids []uint32) error {
	if len(uids) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	c, err := f.connect()
	if err != nil {
		return err
	}
	defer func() { _ = c.Logout() }()

	if err := storeSeen(c, uids); err != nil {
		return err
	}
	f.logger.Info(ctx, "messages marked seen", "count", len(uids))
	return nil
}

func storeSeen(c *client.Client, uids []uint32) error {
	seqset := new(imap.SeqSet)
	seqset.AddNum(uids...)
	flagsOp := imap.FormatFlagsOp(imap.AddFlags, true)
	if err := c.UidStore(seqset, flagsOp, []interface{}{imap.SeenFlag}, nil); err != nil {
		return fmt.Errorf("imap store seen: %w", err)
	}
	return nil
}
