package cli

import (
	"context"
	"time"

	"github.com/cypher-asi/zero-os-sub006/internal/abi"
	"github.com/cypher-asi/zero-os-sub006/internal/hal"
	"github.com/cypher-asi/zero-os-sub006/internal/mailbox"
)

// RegisterBuiltins installs the programs a manifest can name without
// the embedding application registering its own. They are small but
// real: enough to bring a gateway up and watch traffic flow.
func RegisterBuiltins(h *hal.HostPlatform) {
	h.Register("idle", idleProgram)
	h.Register("echo", echoProgram)
}

// idleProgram holds its pid until shutdown. Manifests use it for
// processes whose only job is owning capabilities.
func idleProgram(ctx context.Context, sys *mailbox.Client) error {
	<-ctx.Done()
	return ctx.Err()
}

// echoProgram serves its input endpoint: every received call is
// answered with the same tag and payload. Senders that did not call
// (no reply right) just have their message consumed.
func echoProgram(ctx context.Context, sys *mailbox.Client) error {
	for {
		msg, ok, err := sys.Receive(ctx, abi.SlotInput)
		if err != nil {
			return err
		}
		if !ok {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Millisecond):
			}
			continue
		}
		if err := sys.Reply(ctx, msg.From, msg.Tag, msg.Data); err != nil {
			if mailbox.IsResult(err, abi.ResultPermissionDenied) {
				continue
			}
			return err
		}
	}
}
