package views

import (
	"context"

	"rescuelink/models"
	"rescuelink/services"
	"rescuelink/utils"
)

// thread is the open chat of a view. It is guarded by base.mu.
type thread struct {
	selected models.ID
	messages []models.Message
}

// selectThread switches th to id and loads its messages. A response for a
// selection that has since changed is ignored.
func (b *base) selectThread(ctx context.Context, th *thread, id models.ID, channel services.ChatChannel) error {
	if err := b.commit(func() {
		th.selected = id
		th.messages = nil
	}); err != nil {
		return err
	}

	defer b.begin("messages")()
	opCtx, cancel := b.opContext(ctx)
	defer cancel()

	messages, err := channel.Fetch(opCtx)
	if err != nil {
		return b.fail("Failed to load messages", err)
	}
	return b.commit(func() {
		if th.selected == id {
			th.messages = messages
		}
	})
}

// sendThread posts to the selected conversation of th.
func (b *base) sendThread(ctx context.Context, th *thread, content string, channelFor func(models.ID) services.ChatChannel) (*models.Message, error) {
	b.mu.RLock()
	id := th.selected
	b.mu.RUnlock()
	if id == 0 {
		return nil, b.fail("Failed to send message", utils.NewBadRequestError("No conversation selected"))
	}

	defer b.begin("send")()
	opCtx, cancel := b.opContext(ctx)
	defer cancel()

	msg, err := channelFor(id).Send(opCtx, content)
	if err != nil {
		return nil, b.fail("Failed to send message", err)
	}
	err = b.commit(func() {
		if th.selected == id {
			th.messages = append(th.messages, *msg)
		}
	})
	if err != nil {
		return nil, err
	}
	return msg, nil
}

func (b *base) threadState(th *thread) (models.ID, []models.Message) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return th.selected, append([]models.Message(nil), th.messages...)
}
