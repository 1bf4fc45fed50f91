package instagram

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Davincible/goinsta/v3"

	"github.com/akidev/akibot/internal/app/di"
	"github.com/akidev/akibot/internal/cache"
	"github.com/akidev/akibot/internal/commands"
	"github.com/akidev/akibot/internal/commands/base"
	"github.com/akidev/akibot/internal/logger"
	"github.com/akidev/akibot/internal/telegram"
)

const (
	CommandName = "insta"

	maxCaptionLength = 1024
	postCacheTTL     = 24 * time.Hour
)

type Command struct {
	*base.Command
	insta                  *goinsta.Instagram
	cache                  cache.Cache
	sessionRefreshInterval time.Duration
}

func New(di *di.Container) (*Command, error) {
	di.Logger.Info("Initializing Instagram command")
	cmd := &Command{
		cache: di.Cache,
	}
	cmd.Command = base.NewCommand(cmd, di)

	insta, err := openSession(di, di.Cfg.HTTP().GetProxy())
	if err != nil {
		return nil, err
	}
	cmd.insta = insta
	cmd.sessionRefreshInterval = di.Cfg.Instagram().SessionRefreshInterval

	go cmd.startSessionRefresher()

	return cmd, nil
}

func (c *Command) Name() string {
	return CommandName
}

func (c *Command) Aliases() []string {
	return []string{"ig", "i", "instagram", "inst"}
}

// CachedPost is the resolved form of a link: direct media URLs plus caption.
// Resolving costs an Instagram API round-trip, so it is worth caching.
type CachedPost struct {
	MediaURLs []string `json:"media_urls"`
	Caption   string   `json:"caption"`
}

func (c *Command) Execute(update telegram.Update) error {
	chatID := update.Message.Chat.ID
	messageID := update.Message.MessageID

	var link string
	if update.Message.IsCommand() {
		link = update.Message.CommandArguments()
	} else {
		link = ExtractInstagramURL(update.Message.Text)
	}
	if link == "" {
		msg := telegram.NewMessage(chatID, c.L("instaProvideLink", nil), messageID)
		_, err := c.Tg.Send(msg)
		return err
	}

	cacheKey := fmt.Sprintf("db:instagram:%s", ExtractShortcode(link))
	if post, ok := c.cachedPost(cacheKey); ok {
		c.Logger.WithField("url", link).Debug("Retrieved Instagram post from cache")
		return c.deliver(chatID, messageID, post)
	}

	post, err := c.resolve(link, chatID, messageID)
	if err != nil {
		return err
	}

	if data, err := json.Marshal(post); err == nil {
		if err := c.cache.Set(cacheKey, data, postCacheTTL); err != nil {
			c.Logger.WithError(err).Error("Failed to cache Instagram post")
		}
	}

	return c.deliver(chatID, messageID, post)
}

func (c *Command) cachedPost(key string) (CachedPost, bool) {
	data, found := c.cache.Get(key)
	if !found {
		return CachedPost{}, false
	}

	var post CachedPost
	if err := json.Unmarshal(data, &post); err != nil || len(post.MediaURLs) == 0 {
		c.Logger.WithError(err).Error("Failed to unmarshal cached Instagram post")
		return CachedPost{}, false
	}
	return post, true
}

// resolve maps any supported link form to media URLs. Share links first
// redirect to a canonical reel URL; stories have their own lookup path.
func (c *Command) resolve(link string, chatID int64, messageID int) (CachedPost, error) {
	var mediaURLs []string
	var caption string
	var err error

	switch {
	case strings.Contains(link, "/stories/"):
		mediaURLs, caption, err = c.getStoryContent(link)
	case strings.Contains(link, "/share/"):
		var shortcode string
		shortcode, err = c.resolveShareLink(shareID(link))
		if err != nil {
			c.Logger.WithError(err).Error("Failed to get content from share link")
			msg := telegram.NewMessage(chatID, c.L("instaShareLinkFailed", nil), messageID)
			_, _ = c.Tg.Send(msg)
			return CachedPost{}, err
		}
		link = fmt.Sprintf("https://www.instagram.com/reel/%s/", shortcode)
		mediaURLs, caption, err = c.getMediaFromPost(link)
	default:
		mediaURLs, caption, err = c.getMediaFromPost(link)
	}
	if err != nil {
		return CachedPost{}, err
	}

	return CachedPost{MediaURLs: mediaURLs, Caption: caption}, nil
}

func (c *Command) deliver(chatID int64, messageID int, post CachedPost) error {
	if len(post.MediaURLs) > 1 {
		return c.sendMediaGroup(chatID, post.MediaURLs, post.Caption, messageID)
	}
	return c.sendMedia(chatID, post.MediaURLs[0], post.Caption, messageID)
}

func (c *Command) getMediaFromPost(link string) ([]string, string, error) {
	c.Logger.WithField("url", link).Info("Extracting media from post")

	shortcode := ExtractShortcode(link)
	if shortcode == "" {
		return nil, "", fmt.Errorf("invalid Instagram URL: %w", commands.ErrPermanent)
	}

	media, err := executeWithRelogin(c, func() (*goinsta.FeedMedia, error) {
		return c.insta.GetMedia(shortcode)
	})
	if err != nil {
		if strings.Contains(err.Error(), "Media not found") {
			return nil, "", fmt.Errorf("media not found: %w", commands.ErrPermanent)
		}
		return nil, "", fmt.Errorf("failed to get media: %w", err)
	}

	var urls []string
	var caption, username string

	for _, item := range media.Items {
		if username == "" && item.User.Username != "" {
			username = item.User.Username
		}
		if caption == "" && item.Caption.Text != "" {
			caption = item.Caption.Text
		}
		urls = append(urls, itemMediaURLs(item)...)
	}

	if len(urls) == 0 {
		return nil, "", fmt.Errorf("no media found in post: %w", commands.ErrPermanent)
	}

	return urls, buildCaption(caption, username), nil
}

// itemMediaURLs picks the best rendition of every media in the item. Media
// types: 1 photo, 2 video, 8 carousel.
func itemMediaURLs(item *goinsta.Item) []string {
	var urls []string
	switch item.MediaType {
	case 1:
		if len(item.Images.Versions) > 0 {
			urls = append(urls, goinsta.GetBest(item.Images.Versions))
		}
	case 2:
		if len(item.Videos) > 0 {
			urls = append(urls, goinsta.GetBest(item.Videos))
		}
	case 8:
		for _, carousel := range item.CarouselMedia {
			if len(carousel.Videos) > 0 {
				urls = append(urls, goinsta.GetBest(carousel.Videos))
			} else if len(carousel.Images.Versions) > 0 {
				urls = append(urls, goinsta.GetBest(carousel.Images.Versions))
			}
		}
	}
	return urls
}

// buildCaption truncates to the Telegram caption limit and appends the
// author as a hashtag.
func buildCaption(caption, username string) string {
	if len(caption) > maxCaptionLength {
		caption = caption[:maxCaptionLength-3] + "..."
	}
	if username == "" {
		return caption
	}
	if caption == "" {
		return "#" + username
	}
	return caption + "\n\n#" + username
}

func (c *Command) getStoryContent(link string) ([]string, string, error) {
	c.Logger.WithField("url", link).Info("Processing story URL")

	username := ExtractUsernameFromStoryURL(link)
	if username == "" {
		return nil, "", fmt.Errorf("could not extract username from story URL: %w", commands.ErrPermanent)
	}
	storyID := ExtractShortcode(link)
	if storyID == "" {
		return nil, "", fmt.Errorf("could not extract story ID: %w", commands.ErrPermanent)
	}

	user, err := executeWithRelogin(c, func() (*goinsta.User, error) {
		return c.insta.Profiles.ByName(username)
	})
	if err != nil {
		return nil, "", fmt.Errorf("failed to get user profile: %w", err)
	}

	stories, err := executeWithRelogin(c, func() (*goinsta.StoryMedia, error) {
		return user.Stories()
	})
	if err != nil {
		return nil, "", fmt.Errorf("failed to get user stories: %w", err)
	}

	var urls []string
	var caption string

	for _, item := range stories.Reel.Items {
		itemID := fmt.Sprintf("%v", item.ID)
		if strings.Split(itemID, "_")[0] != storyID {
			continue
		}

		if item.Caption.Text != "" {
			caption = item.Caption.Text
		}
		if len(item.Videos) > 0 {
			urls = append(urls, goinsta.GetBest(item.Videos))
		} else if len(item.Images.Versions) > 0 {
			urls = append(urls, goinsta.GetBest(item.Images.Versions))
		}
		break
	}

	if len(urls) == 0 {
		return nil, "", fmt.Errorf("no media found in story or story expired: %w", commands.ErrPermanent)
	}
	return urls, caption, nil
}

func (c *Command) sendMedia(chatID int64, url string, caption string, replyToID int) error {
	if telegram.IsImageURL(url) {
		photo := telegram.NewPhotoMessage(chatID, telegram.FileURL(url), caption, replyToID)
		_, err := c.Tg.Send(photo)
		return err
	}

	video := telegram.NewVideoMessage(chatID, telegram.FileURL(url), caption, replyToID)
	_, err := c.Tg.Send(video)
	return err
}

// sendMediaGroup splits the URLs into Telegram album batches of ten. The
// first batch replies to the triggering message; later batches reply to the
// first batch so the whole post stays threaded.
func (c *Command) sendMediaGroup(chatID int64, mediaURLs []string, caption string, replyToID int) error {
	const maxItemsPerGroup = 10
	const baseRetryDelay = 5 * time.Second
	const maxRetries = 3

	numGroups := (len(mediaURLs) + maxItemsPerGroup - 1) / maxItemsPerGroup
	var firstGroupMessageID int

	for i := range numGroups {
		start := i * maxItemsPerGroup
		end := min((i+1)*maxItemsPerGroup, len(mediaURLs))
		batch := mediaURLs[start:end]

		var lastErr error
		for retry := range maxRetries {
			if retry > 0 {
				delay := baseRetryDelay * time.Duration(1<<uint(retry))
				c.Logger.WithFields(logger.Fields{
					"group": i + 1,
					"retry": retry,
					"delay": delay,
					"total": numGroups,
				}).Info("Retrying media group send after delay")
				time.Sleep(delay)
			}

			// caption rides on the very first item only
			group := buildMediaGroup(batch, i == 0, caption)

			config := telegram.NewMediaGroupMessage(chatID, group)
			if i == 0 {
				config.ReplyTo = replyToID
			} else if firstGroupMessageID != 0 {
				config.ReplyTo = firstGroupMessageID
			}

			rawResp, err := c.Tg.Request(config)
			if err != nil {
				lastErr = err
				if strings.Contains(err.Error(), "Too Many Requests") {
					if retryAfter := extractRetryAfter(err.Error()); retryAfter > 0 {
						delay := time.Duration(retryAfter) * time.Second
						c.Logger.WithFields(logger.Fields{
							"group": i + 1,
							"delay": delay,
							"error": err,
						}).Debug("Rate limit hit, waiting specified time")
						time.Sleep(delay)
					}
				}
				continue
			}

			var msgs []telegram.Message
			if err := json.Unmarshal(rawResp.Result, &msgs); err != nil {
				return fmt.Errorf("failed to parse response for group %d/%d: %w", i+1, numGroups, err)
			}
			if i == 0 && len(msgs) > 0 {
				firstGroupMessageID = msgs[0].MessageID
			}

			c.Logger.WithFields(logger.Fields{
				"group":            i + 1,
				"total":            numGroups,
				"items":            len(batch),
				"chat_id":          chatID,
				"first_message_id": firstGroupMessageID,
			}).Info("Sent media group")

			if i < numGroups-1 {
				time.Sleep(2 * time.Second)
			}

			lastErr = nil
			break
		}

		if lastErr != nil {
			return fmt.Errorf("failed to send media group %d/%d after %d retries: %w",
				i+1, numGroups, maxRetries, lastErr)
		}
	}

	return nil
}

func buildMediaGroup(urls []string, withCaption bool, caption string) []telegram.InputMedia {
	group := make([]telegram.InputMedia, 0, len(urls))
	for j, url := range urls {
		useCaption := ""
		if withCaption && j == 0 {
			useCaption = caption
		}

		if telegram.IsImageURL(url) {
			photo := telegram.NewPhotoMedia(telegram.FileURL(url))
			photo.Caption = useCaption
			group = append(group, &photo)
		} else {
			video := telegram.NewVideoMedia(telegram.FileURL(url))
			video.Caption = useCaption
			group = append(group, &video)
		}
	}
	return group
}

// extractRetryAfter parses the retry_after value out of Telegram's error message.
func extractRetryAfter(errMsg string) int {
	parts := strings.Split(errMsg, "retry after ")
	if len(parts) != 2 {
		return 0
	}
	seconds, err := strconv.Atoi(strings.Split(parts[1], ":")[0])
	if err != nil {
		return 0
	}
	return seconds
}
