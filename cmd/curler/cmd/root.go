/*
 *     Copyright 2023 The Dragonfly Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *      http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package cmd

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"reflect"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"d7y.io/curler/client/config"
	"d7y.io/curler/cmd/dependency"
	logger "d7y.io/curler/internal/dflog"
	"d7y.io/curler/pkg/fetch"
	"d7y.io/curler/pkg/policy"
	"d7y.io/curler/pkg/transport"
	"d7y.io/curler/pkg/unit"
)

const formContentType = "application/x-www-form-urlencoded"

var (
	curlerViper = viper.New()

	// Repeatable and size flags are kept out of viper, which would split
	// their values on commas or round them through their string form.
	headerFlag      []string
	formFlag        []string
	acceptFlag      []string
	maxBodySizeFlag unit.Bytes
	rateLimitFlag   unit.Bytes
)

// curlerDescription is used to describe curler command in details.
var curlerDescription = `curler fetches web resources over HTTP(S). Every URL is probed with a HEAD
request first, and the body is only requested when the status code, mime type
and declared size satisfy the download policy. Bodies larger than the size
limit are cut off while streaming.`

// curlerExample shows examples in curler command, and is used in auto-generated cli docs.
var curlerExample = `
$ curler https://example.com/ -o /tmp/index.html
$ curler --accept images --max-body-size 5MB https://example.com/logo.png https://example.com/icon.gif -o /tmp/images
$ curler -X POST -F q=dragonfly -F page=2 https://example.com/search
`

var rootCmd = &cobra.Command{
	Use:               "curler [flags] URL...",
	Short:             "fetch web resources that satisfy a download policy",
	Long:              curlerDescription,
	Example:           curlerExample,
	DisableAutoGenTag: true,
	SilenceUsage:      true,
	RunE: func(cmd *cobra.Command, args []string) error {
		// load config file into the given viper instance.
		if err := readConfigFile(curlerViper, cmd); err != nil {
			return errors.Wrap(err, "read config file")
		}

		// get config from viper.
		cfg, err := getConfigFromViper(curlerViper)
		if err != nil {
			return errors.Wrap(err, "get config from viper")
		}
		mergeFlags(cmd, cfg)

		if err := cfg.Convert(args); err != nil {
			return err
		}

		if err := cfg.Validate(); err != nil {
			return err
		}

		// init logger
		if err := logger.InitCurler(cfg.Verbose, cfg.Console, cfg.LogDir); err != nil {
			return errors.Wrap(err, "init curler logger")
		}
		logger.Debugf("curler config: %s", cfg)

		return runCurler(cmd.Context(), cfg, cmd.OutOrStdout(), cmd.ErrOrStderr())
	},
}

// Execute will process curler.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		logger.Errorf("Execute error: %s", err)
		os.Exit(1)
	}
}

func init() {
	setupFlags(rootCmd)

	// add sub commands
	rootCmd.AddCommand(dependency.VersionCmd)
	rootCmd.AddCommand(configCmd)
}

// setupFlags setups flags for command line.
func setupFlags(cmd *cobra.Command) {
	flagSet := cmd.Flags()
	defaultConfig := config.NewCurlerConfig()

	flagSet.String("config", config.DefaultConfigFilePath, "the path of curler configuration file")
	flagSet.StringP("method", "X", defaultConfig.Method, "request method, GET or POST")
	flagSet.StringP("data", "d", "", "raw POST body, conflicts with --form")
	flagSet.String("content-type", "", "content type of --data, defaults to "+formContentType)
	flagSet.StringArrayVarP(&formFlag, "form", "F", nil, "POST form field as key=value, can be repeated")
	flagSet.StringP("output", "o", "", "output file, or directory when several URLs are given. Empty or '-' writes to stdout")

	acceptFlag = defaultConfig.Accept
	flagSet.Var(config.NewSelectorsValue(&acceptFlag), "accept",
		"accepted mime tags or types, eg: --accept images --accept text/css. Pass --accept= to deny all")
	flagSet.IntSlice("status", defaultConfig.Status, "accepted HTTP status codes")
	maxBodySizeFlag = defaultConfig.MaxBodySize
	flagSet.Var(&maxBodySizeFlag, "max-body-size", "size limit of a body, in format of G(B)/g/M(B)/m/K(B)/k/B, pure number will also be parsed as Byte")

	flagSet.Duration("timeout", defaultConfig.Timeout, "timeout of each request")
	flagSet.Duration("connect-timeout", defaultConfig.ConnectTimeout, "timeout of each connection attempt")
	flagSet.Int("max-redirects", defaultConfig.MaxRedirects, "maximum number of redirects to follow")
	flagSet.Bool("no-follow", false, "do not follow redirects")
	flagSet.StringP("user-agent", "A", defaultConfig.UserAgent, "User-Agent header")
	flagSet.StringArrayVarP(&headerFlag, "header", "H", nil, "http header, eg: --header='Accept-Language: de' --header='X-Token: abc'")
	flagSet.StringP("user", "u", "", "basic auth credentials as user:password")
	flagSet.StringP("cookie-jar", "c", "", "file to load and persist cookies")
	flagSet.Bool("tls-verify", false, "verify the peer certificate")

	flagSet.Int("concurrency", defaultConfig.Concurrency, "number of URLs fetched at the same time")
	rateLimitFlag = defaultConfig.RateLimit
	flagSet.Var(&rateLimitFlag, "rate-limit", "body download rate limit per second, 0 disables it")

	flagSet.BoolP("show-progress", "b", false, "show progress bar, it is conflict with '--console'")
	flagSet.Bool("console", false, "show log on console, it's conflict with '--show-progress'")
	flagSet.Bool("verbose", false, "enable verbose mode, all debug log will be display")
	flagSet.String("logdir", defaultConfig.LogDir, "parent directory of the curler log directory")

	exitOnError(bindRootFlags(curlerViper, cmd), "bind root command flags")
}

// bindRootFlags binds flags on cmd to the given viper instance.
func bindRootFlags(v *viper.Viper, cmd *cobra.Command) error {
	flags := []struct {
		key  string
		flag string
	}{
		{key: "config", flag: "config"},
		{key: "method", flag: "method"},
		{key: "data", flag: "data"},
		{key: "contentType", flag: "content-type"},
		{key: "output", flag: "output"},
		{key: "status", flag: "status"},
		{key: "timeout", flag: "timeout"},
		{key: "connectTimeout", flag: "connect-timeout"},
		{key: "maxRedirects", flag: "max-redirects"},
		{key: "noFollow", flag: "no-follow"},
		{key: "userAgent", flag: "user-agent"},
		{key: "user", flag: "user"},
		{key: "cookieJar", flag: "cookie-jar"},
		{key: "tlsVerify", flag: "tls-verify"},
		{key: "concurrency", flag: "concurrency"},
		{key: "showProgress", flag: "show-progress"},
		{key: "console", flag: "console"},
		{key: "verbose", flag: "verbose"},
		{key: "logDir", flag: "logdir"},
	}

	for _, f := range flags {
		if err := v.BindPFlag(f.key, cmd.Flag(f.flag)); err != nil {
			return err
		}
	}

	v.SetEnvPrefix(config.EnvPrefix)
	v.AutomaticEnv()

	return nil
}

// readConfigFile reads config file into the given viper instance. If we're
// reading the default configuration file and the file does not exist, nil will
// be returned.
func readConfigFile(v *viper.Viper, cmd *cobra.Command) error {
	v.SetConfigFile(v.GetString("config"))
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		// when the default config file is not found, ignore the error
		if os.IsNotExist(err) && !cmd.Flag("config").Changed {
			return nil
		}
		return err
	}

	return nil
}

// getConfigFromViper returns curler config from the given viper instance.
func getConfigFromViper(v *viper.Viper) (*config.CurlerConfig, error) {
	cfg := config.NewCurlerConfig()

	if err := v.Unmarshal(cfg, func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "yaml"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToSliceHookFunc(","),
			decodeWithYAML(
				reflect.TypeOf(time.Second),
				reflect.TypeOf(unit.B),
			),
		)
	}); err != nil {
		return nil, errors.Wrap(err, "unmarshal yaml")
	}

	return cfg, nil
}

// decodeWithYAML returns a mapstructure.DecodeHookFunc to decode the given
// types by unmarshalling from yaml text.
func decodeWithYAML(types ...reflect.Type) mapstructure.DecodeHookFunc {
	return func(f, t reflect.Type, data any) (any, error) {
		for _, typ := range types {
			if t == typ {
				b, _ := yaml.Marshal(data)
				v := reflect.New(t)
				return v.Interface(), yaml.Unmarshal(b, v.Interface())
			}
		}
		return data, nil
	}
}

// mergeFlags applies flags that bypass viper to the loaded config.
func mergeFlags(cmd *cobra.Command, cfg *config.CurlerConfig) {
	cfg.Header = append(cfg.Header, headerFlag...)
	cfg.Form = append(cfg.Form, formFlag...)

	flagSet := cmd.Flags()
	if flagSet.Changed("accept") {
		cfg.Accept = acceptFlag
	}

	if flagSet.Changed("max-body-size") {
		cfg.MaxBodySize = maxBodySizeFlag
	}

	if flagSet.Changed("rate-limit") {
		cfg.RateLimit = rateLimitFlag
	}
}

// runCurler builds the shared transport and fetches every URL.
func runCurler(ctx context.Context, cfg *config.CurlerConfig, stdout, stderr io.Writer) error {
	base := transport.DefaultTransport()
	if err := cfg.Transport.Apply(base); err != nil {
		return err
	}

	opts := []transport.HTTPTransportOption{transport.WithBaseTransport(base)}
	if limiter := cfg.RateLimiter(); limiter != nil {
		opts = append(opts, transport.WithRateLimiter(limiter))
	}

	return fetchAll(ctx, cfg, transport.NewHTTPTransport(opts...), stdout, stderr)
}

// fetchAll runs one session per URL, at most cfg.Concurrency at a time. A
// failed URL does not stop the others, all failures are returned together.
func fetchAll(ctx context.Context, cfg *config.CurlerConfig, t transport.Transport, stdout, stderr io.Writer) error {
	p, err := cfg.Policy()
	if err != nil {
		return err
	}

	rc, err := cfg.RequestConfig()
	if err != nil {
		return err
	}

	form, err := cfg.FormValues()
	if err != nil {
		return err
	}

	var (
		mu     sync.Mutex
		result error
		eg     errgroup.Group
	)
	eg.SetLimit(cfg.Concurrency)

	for i, rawURL := range cfg.URLs {
		i, rawURL := i, rawURL
		eg.Go(func() error {
			start := time.Now()
			body, err := fetchOne(ctx, cfg, t, p, rc, form, rawURL, stderr)
			if err == nil {
				err = writeOutput(cfg.OutputFor(i), body, stdout, &mu)
			}

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				logger.Errorf("fetch %s error: %s", rawURL, err)
				result = multierror.Append(result, errors.Wrapf(err, "fetch %s", rawURL))
				return nil
			}

			logger.Infof("fetch %s success, length: %d, cost: %s", rawURL, len(body), time.Since(start))
			return nil
		})
	}

	// goroutines only report through result.
	_ = eg.Wait()
	return result
}

func fetchOne(ctx context.Context, cfg *config.CurlerConfig, t transport.Transport, p policy.Policy,
	rc transport.RequestConfig, form url.Values, rawURL string, stderr io.Writer) ([]byte, error) {
	opts := []fetch.Option{
		fetch.WithTransport(t),
		fetch.WithPolicy(p),
		fetch.WithRequestConfig(rc),
	}

	var bar *progressbar.ProgressBar
	if cfg.ShowProgress {
		bar = newProgressBar(rawURL, stderr)
		opts = append(opts, fetch.WithProgress(func(read int64) {
			_ = bar.Set64(read)
		}))
	}

	s, err := fetch.New(opts...)
	if err != nil {
		return nil, err
	}

	var body []byte
	switch {
	case cfg.Method == http.MethodPost && cfg.Data != "":
		contentType := cfg.ContentType
		if contentType == "" {
			contentType = formContentType
		}
		body, err = s.PostPayload(ctx, rawURL, contentType, []byte(cfg.Data))
	case cfg.Method == http.MethodPost:
		body, err = s.Post(ctx, rawURL, form)
	default:
		body, err = s.Get(ctx, rawURL)
	}

	if bar != nil {
		_ = bar.Finish()
	}

	return body, err
}

func newProgressBar(rawURL string, w io.Writer) *progressbar.ProgressBar {
	return progressbar.NewOptions64(-1,
		progressbar.OptionSetDescription(rawURL),
		progressbar.OptionSetWriter(w),
		progressbar.OptionShowBytes(true),
		progressbar.OptionShowCount(),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionThrottle(65*time.Millisecond),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprint(w, "\n")
		}),
	)
}

// writeOutput writes body to output, or to stdout when output is empty.
func writeOutput(output string, body []byte, stdout io.Writer, mu *sync.Mutex) error {
	if output != "" {
		return os.WriteFile(output, body, 0644)
	}

	mu.Lock()
	defer mu.Unlock()
	_, err := stdout.Write(body)
	return err
}

func exitOnError(err error, msg string) {
	if err != nil {
		logger.Fatalf("%s: %v", msg, err)
	}
}
