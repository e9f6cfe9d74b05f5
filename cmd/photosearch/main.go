package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dharsanguruparan/photosearch/internal/app"
	"github.com/dharsanguruparan/photosearch/internal/config"
	"github.com/dharsanguruparan/photosearch/internal/ingest"
	logpkg "github.com/dharsanguruparan/photosearch/internal/logger"
	"github.com/dharsanguruparan/photosearch/internal/query"
)

var configFile string

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rootCmd := newRootCommand()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "photosearch: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "photosearch",
		Short: "PhotoSearch operator CLI",
		Long: `PhotoSearch CLI runs the search and indexing pipelines directly against the
configured object store and document store, without going through the API.`,
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVarP(&configFile, "config", "c", os.Getenv("PHOTOSEARCH_CONFIG"), "YAML config file")
	cmd.AddCommand(
		newSearchCmd(),
		newIndexCmd(),
		newUploadCmd(),
		newURLCmd(),
	)
	return cmd
}

// loadApp builds the services. CLI output goes to stdout, so logs are
// written at warn and above only.
func loadApp(ctx context.Context) (*app.App, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, err
	}
	level := cfg.LogLevel
	if level == "" {
		level = "warn"
	}
	logger, err := logpkg.NewLogger(cfg.Env, level)
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}
	return app.New(ctx, cfg, logger)
}

func newSearchCmd() *cobra.Command {
	var session string
	cmd := &cobra.Command{
		Use:   "search <query...>",
		Short: "Search photos by natural-language query",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := loadApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()
			if session == "" {
				session = uuid.NewString()
			}
			resp := a.Query.Handle(ctx, query.Event{Q: strings.Join(args, " ")}, session)
			if err := printJSON(cmd.OutOrStdout(), resp.Body); err != nil {
				return err
			}
			if resp.StatusCode != http.StatusOK {
				return errors.New(resp.Body.Error)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&session, "session", "", "Disambiguation session id (random when empty)")
	return cmd
}

func newIndexCmd() *cobra.Command {
	var eventFile string
	cmd := &cobra.Command{
		Use:   "index [bucket/key...]",
		Short: "Index photos from a notification file or from object references",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			batch, err := readBatch(eventFile, args)
			if err != nil {
				return err
			}
			if len(batch.Records) == 0 {
				return errors.New("nothing to index: pass --file or bucket/key arguments")
			}
			a, err := loadApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()
			return printJSON(cmd.OutOrStdout(), a.Ingest.Process(ctx, batch))
		},
	}
	cmd.Flags().StringVarP(&eventFile, "file", "f", "", "S3 event notification JSON (- for stdin)")
	return cmd
}

func newUploadCmd() *cobra.Command {
	var labels, key string
	cmd := &cobra.Command{
		Use:   "upload <file>",
		Short: "Upload a photo with optional custom labels",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			f, err := os.Open(filepath.Clean(args[0]))
			if err != nil {
				return err
			}
			defer f.Close()
			info, err := f.Stat()
			if err != nil {
				return err
			}
			contentType, err := sniff(f)
			if err != nil {
				return err
			}
			if key == "" {
				key = filepath.Base(args[0])
			}
			a, err := loadApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()
			if err := a.Storage.Upload(ctx, key, f, info.Size(), contentType, labels); err != nil {
				return err
			}
			a.Logger.Info("photo uploaded", zap.String("key", key), zap.String("bucket", a.Storage.Bucket()))
			return printJSON(cmd.OutOrStdout(), map[string]string{"bucket": a.Storage.Bucket(), "objectKey": key})
		},
	}
	cmd.Flags().StringVarP(&labels, "labels", "l", "", "Comma separated custom labels")
	cmd.Flags().StringVarP(&key, "key", "k", "", "Object key (defaults to the file name)")
	return cmd
}

func newURLCmd() *cobra.Command {
	var bucket string
	cmd := &cobra.Command{
		Use:   "url <key>",
		Short: "Print a presigned download URL for a photo",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := loadApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()
			if bucket == "" {
				bucket = a.Storage.Bucket()
			}
			link, err := a.Storage.PresignURL(ctx, bucket, args[0], a.Config.SignedURLTTL)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), link)
			return nil
		},
	}
	cmd.Flags().StringVarP(&bucket, "bucket", "b", "", "Bucket (defaults to the configured one)")
	return cmd
}

// readBatch loads a notification file, or builds one record per bucket/key
// argument. Keys given as arguments are taken literally.
func readBatch(path string, refs []string) (ingest.Batch, error) {
	var batch ingest.Batch
	if path != "" {
		var r io.Reader = os.Stdin
		if path != "-" {
			f, err := os.Open(filepath.Clean(path))
			if err != nil {
				return batch, err
			}
			defer f.Close()
			r = f
		}
		if err := json.NewDecoder(r).Decode(&batch); err != nil {
			return batch, fmt.Errorf("decode %s: %w", path, err)
		}
	}
	for _, ref := range refs {
		bucket, key, ok := strings.Cut(ref, "/")
		if !ok || bucket == "" || key == "" {
			return batch, fmt.Errorf("invalid object reference %q, want bucket/key", ref)
		}
		batch.Records = append(batch.Records, ingest.NewRecord(bucket, escapeKey(key)))
	}
	return batch, nil
}

// escapeKey encodes a literal key the way S3 notifications do.
func escapeKey(key string) string {
	parts := strings.Split(key, "/")
	for i, p := range parts {
		parts[i] = strings.ReplaceAll(url.QueryEscape(p), "+", "%20")
	}
	return strings.Join(parts, "/")
}

func sniff(f *os.File) (string, error) {
	buf := make([]byte, 512)
	n, err := f.Read(buf)
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return "", err
	}
	return http.DetectContentType(buf[:n]), nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
