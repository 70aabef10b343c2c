package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// DefaultDiscordAPI is the REST endpoint of the production transport.
const DefaultDiscordAPI = "https://discord.com/api/v10"

// DiscordConfig configures the Discord-backed Messenger.
type DiscordConfig struct {
	// Token is the bot token used for every channel call.
	Token string
	// ChannelID is the channel holding every chunk message.
	ChannelID string
	// API overrides the REST endpoint. Defaults to DefaultDiscordAPI.
	API string
	// Timeout bounds each REST call, body included. Defaults to 60s.
	Timeout time.Duration
	// Limits are the platform limits. Zero fields get the defaults.
	Limits Limits
}

type discord struct {
	cfg    DiscordConfig
	client *http.Client
}

// NewDiscord returns a Messenger storing chunk batches as attachments of
// messages in a single channel, descriptors in message bodies.
func NewDiscord(cfg DiscordConfig) Messenger {
	if cfg.API == "" {
		cfg.API = DefaultDiscordAPI
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.Limits.MaxAttachments == 0 {
		cfg.Limits.MaxAttachments = DefaultMaxAttachments
	}
	if cfg.Limits.MaxMessageSize == 0 {
		cfg.Limits.MaxMessageSize = DefaultMaxMessageSize
	}

	return &discord{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

func (d *discord) Name() string {
	return "discord"
}

type discordAttachment struct {
	URL string `json:"url"`
}

type discordMessage struct {
	ID          string              `json:"id"`
	Content     string              `json:"content"`
	Attachments []discordAttachment `json:"attachments"`
}

func (d *discord) SendBatch(ctx context.Context, attachments [][]byte) (*Message, error) {
	if len(attachments) == 0 {
		return nil, errors.New("empty batch")
	}
	if err := d.cfg.Limits.check(attachments); err != nil {
		return nil, err
	}

	body := &bytes.Buffer{}
	form := multipart.NewWriter(body)
	for i, attachment := range attachments {
		header := make(textproto.MIMEHeader)
		header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="files[%d]"; filename="chk-%d.bin.zip"`, i, i))
		header.Set("Content-Type", "application/zip")

		part, err := form.CreatePart(header)
		if err != nil {
			return nil, errors.Wrap(err, "could not build batch form")
		}
		if _, err = part.Write(attachment); err != nil {
			return nil, errors.Wrap(err, "could not build batch form")
		}
	}
	if err := form.Close(); err != nil {
		return nil, errors.Wrap(err, "could not build batch form")
	}

	var msg discordMessage
	err := d.call(ctx, http.MethodPost, d.channelURL("messages"), form.FormDataContentType(), body, &msg)
	if err != nil {
		return nil, err
	}

	urls := make([]string, 0, len(msg.Attachments))
	for _, attachment := range msg.Attachments {
		urls = append(urls, attachment.URL)
	}
	return &Message{ID: msg.ID, AttachmentURLs: urls}, nil
}

func (d *discord) FetchBytes(ctx context.Context, url string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.Wrap(err, "could not build attachment request")
	}

	// Attachment URLs point at the CDN, no authentication needed.
	res, err := d.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "could not fetch attachment")
	}
	if res.StatusCode != http.StatusOK {
		res.Body.Close()
		return nil, errors.Errorf("chunk fetch failed, response status: %d", res.StatusCode)
	}
	return res.Body, nil
}

func (d *discord) FetchMessageBody(ctx context.Context, id string) (string, error) {
	var msg discordMessage
	err := d.call(ctx, http.MethodGet, d.channelURL("messages", id), "", nil, &msg)
	if err != nil {
		return "", err
	}
	return msg.Content, nil
}

func (d *discord) PatchMessageBody(ctx context.Context, id, body string) error {
	payload, err := json.Marshal(map[string]string{"content": body})
	if err != nil {
		return errors.Wrap(err, "could not serialize message body")
	}

	return d.call(ctx, http.MethodPatch, d.channelURL("messages", id), "application/json", bytes.NewReader(payload), nil)
}

func (d *discord) DeleteMessages(ctx context.Context, ids []string) error {
	for _, id := range ids {
		err := d.call(ctx, http.MethodDelete, d.channelURL("messages", id), "", nil, nil)
		if err != nil {
			return errors.Wrapf(err, "could not delete message %s", id)
		}
	}
	return nil
}

func (d *discord) channelURL(parts ...string) string {
	return d.cfg.API + "/channels/" + d.cfg.ChannelID + "/" + strings.Join(parts, "/")
}

func (d *discord) call(ctx context.Context, method, url, contentType string, body io.Reader, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return errors.Wrap(err, "could not build transport request")
	}
	req.Header.Set("Authorization", "Bot "+d.cfg.Token)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	res, err := d.client.Do(req)
	if err != nil {
		return errors.Wrap(err, "transport call failed")
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		payload, _ := io.ReadAll(io.LimitReader(res.Body, 512))
		return errors.Errorf("transport call failed, response status: %d (%s)", res.StatusCode, strings.TrimSpace(string(payload)))
	}

	if out == nil {
		return nil
	}
	return errors.Wrap(json.NewDecoder(res.Body).Decode(out), "could not decode transport response")
}
