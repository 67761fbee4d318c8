package denoloader

import (
	"context"
	"fmt"
	"mime"
	"net/url"
	"path"
	"path/filepath"
	"strings"

	"github.com/evanw/esbuild/pkg/api"
	"github.com/rs/zerolog"
)

// RemoteNamespace is the esbuild namespace of downloaded modules
const RemoteNamespace = "remote"

// runtimeSchemes are resolved by the deno runtime, never bundled
var runtimeSchemes = []string{"npm:", "jsr:", "node:", "data:", "blob:"}

// Options configures Plugins
type Options struct {
	// ImportMap applies to every specifier; nil disables mapping.
	ImportMap *ImportMap
	// Fetcher downloads http(s) modules so they are inlined. When nil they
	// are left external.
	Fetcher *Fetcher
	Context context.Context
	Logger  zerolog.Logger
}

// Plugins returns the resolver and loader plugins for esbuild
func Plugins(opts Options) []api.Plugin {
	if opts.Context == nil {
		opts.Context = context.Background()
	}
	l := &loader{opts: opts, log: opts.Logger.With().Str("component", "denoloader").Logger()}
	return []api.Plugin{
		{Name: "deno-resolver", Setup: l.setupResolver},
		{Name: "deno-loader", Setup: l.setupLoader},
	}
}

// NewPluginsForProject loads the import map of the project's deno config, if
// any, and returns the plugins. A nil fetcher leaves http(s) imports external.
func NewPluginsForProject(ctx context.Context, configPath string, fetcher *Fetcher, logger zerolog.Logger) ([]api.Plugin, error) {
	var importMap *ImportMap
	if configPath != "" {
		m, err := LoadImportMap(configPath)
		if err != nil {
			return nil, err
		}
		importMap = m
	}
	return Plugins(Options{ImportMap: importMap, Fetcher: fetcher, Context: ctx, Logger: logger}), nil
}

type loader struct {
	opts Options
	log  zerolog.Logger
}

func (l *loader) setupResolver(build api.PluginBuild) {
	build.OnResolve(api.OnResolveOptions{Filter: `.*`}, func(args api.OnResolveArgs) (api.OnResolveResult, error) {
		if args.Kind == api.ResolveEntryPoint && args.Namespace != RemoteNamespace {
			return api.OnResolveResult{}, nil
		}
		return l.resolve(args)
	})
}

func (l *loader) resolve(args api.OnResolveArgs) (api.OnResolveResult, error) {
	referrer := l.referrer(args)
	spec := args.Path

	if mapped, ok := l.opts.ImportMap.Resolve(spec, referrer); ok {
		l.log.Debug().Str("specifier", spec).Str("mapped", mapped).Msg("Import map hit")
		spec = mapped
	}

	for _, scheme := range runtimeSchemes {
		if strings.HasPrefix(spec, scheme) {
			return api.OnResolveResult{Path: spec, External: true}, nil
		}
	}

	var target *url.URL
	switch {
	case strings.HasPrefix(spec, "http://"), strings.HasPrefix(spec, "https://"), strings.HasPrefix(spec, "file://"):
		u, err := url.Parse(spec)
		if err != nil {
			return api.OnResolveResult{}, fmt.Errorf("invalid module URL %q: %w", spec, err)
		}
		target = u
	case isRelative(spec):
		if referrer == nil {
			return api.OnResolveResult{}, nil
		}
		target = referrer.ResolveReference(mustParse(spec))
	case filepath.IsAbs(spec):
		return api.OnResolveResult{Path: spec, Namespace: "file"}, nil
	default:
		return api.OnResolveResult{}, fmt.Errorf("relative import path %q not prefixed with / or ./ or ../ and not in import map", spec)
	}

	switch target.Scheme {
	case "file":
		return api.OnResolveResult{Path: filepath.FromSlash(target.Path), Namespace: "file"}, nil
	case "http", "https":
		if l.opts.Fetcher == nil {
			return api.OnResolveResult{Path: target.String(), External: true}, nil
		}
		return api.OnResolveResult{Path: target.String(), Namespace: RemoteNamespace}, nil
	default:
		return api.OnResolveResult{Path: target.String(), External: true}, nil
	}
}

// referrer is the URL relative specifiers resolve against
func (l *loader) referrer(args api.OnResolveArgs) *url.URL {
	if args.Namespace == RemoteNamespace {
		importer := args.Importer
		if l.opts.Fetcher != nil {
			if m, ok := l.opts.Fetcher.Peek(importer); ok {
				importer = m.URL
			}
		}
		u, err := url.Parse(importer)
		if err != nil {
			return nil
		}
		return u
	}
	if args.Importer != "" && filepath.IsAbs(args.Importer) {
		return fileURL(args.Importer)
	}
	if args.ResolveDir != "" {
		return fileURL(args.ResolveDir + string(filepath.Separator))
	}
	return nil
}

func (l *loader) setupLoader(build api.PluginBuild) {
	build.OnLoad(api.OnLoadOptions{Filter: `.*`, Namespace: RemoteNamespace}, func(args api.OnLoadArgs) (api.OnLoadResult, error) {
		if l.opts.Fetcher == nil {
			return api.OnLoadResult{}, fmt.Errorf("remote module %s cannot be loaded: remote imports are disabled", args.Path)
		}
		m, err := l.opts.Fetcher.Fetch(l.opts.Context, args.Path)
		if err != nil {
			return api.OnLoadResult{}, err
		}
		l.log.Debug().Str("url", args.Path).Int("bytes", len(m.Contents)).Msg("Loaded remote module")

		contents := string(m.Contents)
		return api.OnLoadResult{
			Contents: &contents,
			Loader:   loaderFor(m.URL, m.ContentType),
		}, nil
	})
}

// loaderFor picks an esbuild loader from the URL extension, falling back
// to the response content type.
func loaderFor(rawURL, contentType string) api.Loader {
	p := rawURL
	if u, err := url.Parse(rawURL); err == nil {
		p = u.Path
	}
	switch strings.ToLower(path.Ext(p)) {
	case ".ts", ".mts", ".cts":
		return api.LoaderTS
	case ".tsx":
		return api.LoaderTSX
	case ".jsx":
		return api.LoaderJSX
	case ".js", ".mjs", ".cjs":
		return api.LoaderJS
	case ".json":
		return api.LoaderJSON
	}

	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return api.LoaderJS
	}
	switch {
	case strings.Contains(mediaType, "typescript"), mediaType == "video/mp2t":
		if strings.HasSuffix(mediaType, "tsx") {
			return api.LoaderTSX
		}
		return api.LoaderTS
	case strings.Contains(mediaType, "jsx"):
		return api.LoaderJSX
	case strings.Contains(mediaType, "json"):
		return api.LoaderJSON
	default:
		return api.LoaderJS
	}
}
