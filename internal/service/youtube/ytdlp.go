package youtube

import (
	"context"

	"github.com/lrstanley/go-ytdlp"
)

// FetchOptions configures a single yt-dlp invocation.
type FetchOptions struct {
	SkipDownload bool
	PrintJSON    bool
	Proxy        string
}

// YtdlpContentExtractor shells out to yt-dlp via the go-ytdlp wrapper.
type YtdlpContentExtractor struct{}

func (f *YtdlpContentExtractor) Extract(ctx context.Context, url string, opts FetchOptions) (*ytdlp.Result, error) {
	dl := ytdlp.New()
	if opts.SkipDownload {
		dl = dl.SkipDownload()
	}
	if opts.PrintJSON {
		dl = dl.PrintJSON()
	}
	if opts.Proxy != "" {
		dl = dl.Proxy(opts.Proxy)
	}
	return dl.Run(ctx, url)
}
