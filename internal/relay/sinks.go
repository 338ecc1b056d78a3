package relay

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/bowerhall/ari/internal/chat"
	"github.com/bowerhall/ari/internal/logger"
)

// TelegramSink posts to one or more operator chats through the bot itself.
type TelegramSink struct {
	messenger chat.Messenger
	chatIDs   []int64
}

func NewTelegramSink(m chat.Messenger, chatIDs []int64) *TelegramSink {
	return &TelegramSink{messenger: m, chatIDs: chatIDs}
}

func (t *TelegramSink) Name() string { return "telegram" }

func (t *TelegramSink) SendText(ctx context.Context, text string) error {
	var errs []error
	for _, id := range t.chatIDs {
		if _, err := t.messenger.SendText(ctx, id, text, nil); err != nil {
			errs = append(errs, fmt.Errorf("chat %d: %w", id, err))
		}
	}
	return errors.Join(errs...)
}

func (t *TelegramSink) SendPhotos(ctx context.Context, photos []string, caption string) error {
	var errs []error
	for _, id := range t.chatIDs {
		var err error
		if len(photos) == 1 {
			_, err = t.messenger.SendPhoto(ctx, id, photos[0], caption, nil)
		} else {
			err = t.messenger.SendPhotoGroup(ctx, id, photos, caption)
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("chat %d: %w", id, err))
		}
	}
	return errors.Join(errs...)
}

// discordAPI is the part of *discordgo.Session the sink uses.
type discordAPI interface {
	ChannelMessageSend(channelID string, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// DiscordSink mirrors notices into a Discord channel. Telegram file ids mean
// nothing there, so photos are downloaded and uploaded as attachments.
type DiscordSink struct {
	api       discordAPI
	channelID string
	fetcher   chat.Fetcher
}

// NewDiscordSink opens a bot session for token.
func NewDiscordSink(token, channelID string, fetcher chat.Fetcher) (*DiscordSink, error) {
	s, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("discord session: %w", err)
	}
	return &DiscordSink{api: s, channelID: channelID, fetcher: fetcher}, nil
}

func (d *DiscordSink) Name() string { return "discord" }

func (d *DiscordSink) SendText(ctx context.Context, text string) error {
	_, err := d.api.ChannelMessageSend(d.channelID, text, discordgo.WithContext(ctx))
	if err != nil {
		logger.Error("discord send failed", "error", err, "channelID", d.channelID)
		return err
	}
	logger.Debug("discord message sent", "channelID", d.channelID, "chars", len(text))
	return nil
}

func (d *DiscordSink) SendPhotos(ctx context.Context, photos []string, caption string) error {
	files := make([]*discordgo.File, 0, len(photos))
	for i, ref := range photos {
		data, contentType, err := d.fetcher.Fetch(ctx, ref)
		if err != nil {
			return fmt.Errorf("fetch photo %d: %w", i+1, err)
		}
		files = append(files, &discordgo.File{
			Name:        fmt.Sprintf("photo-%d%s", i+1, extension(contentType)),
			ContentType: contentType,
			Reader:      bytes.NewReader(data),
		})
	}

	_, err := d.api.ChannelMessageSendComplex(d.channelID, &discordgo.MessageSend{
		Content: caption,
		Files:   files,
	}, discordgo.WithContext(ctx))
	if err != nil {
		logger.Error("discord send photos failed", "error", err, "channelID", d.channelID)
		return err
	}
	logger.Debug("discord photos sent", "channelID", d.channelID, "count", len(files))
	return nil
}

func extension(contentType string) string {
	switch {
	case strings.Contains(contentType, "png"):
		return ".png"
	case strings.Contains(contentType, "webp"):
		return ".webp"
	default:
		return ".jpg"
	}
}
