package main

import (
	"github.com/spf13/cobra"

	"github.com/dn9uy3n/bbot-osint-mcp/internal/artifact"
	"github.com/dn9uy3n/bbot-osint-mcp/internal/types"
	"github.com/dn9uy3n/bbot-osint-mcp/internal/upload"
)

var errNoScanDir = types.NewError(types.ARTIFACT_NOT_FOUND, "no scan directory found")

var (
	uploadDir      string
	uploadFile     string
	uploadDomain   string
	uploadScanName string

	// Flag overrides for running outside a configured worker.
	uploadURL    string
	uploadID     string
	uploadToken  string
	uploadNoGzip bool
)

var uploadCmd = &cobra.Command{
	Use:   "upload",
	Short: "Upload one scan directory or file to the central node",
	Long: `Pushes consolidated scan output to the central ingest endpoint using
the configured worker credentials. Flags override the configuration so
the command also works as a standalone worker tool.

Exit codes: 0 on success, 3 when upload credentials are missing, 1 on
any other failure.`,
	RunE: runUpload,
}

func runUpload(cmd *cobra.Command, args []string) error {
	ucfg := upload.Config{
		URL:         cfg.Upload.CentralURL,
		WorkerID:    cfg.Upload.WorkerID,
		WorkerToken: cfg.Upload.WorkerToken,
		Compress:    cfg.Upload.Compress && !uploadNoGzip,
		VerifyTLS:   cfg.Upload.VerifyTLS,
		Timeout:     cfg.Upload.Timeout,
	}
	if uploadURL != "" {
		ucfg.URL = uploadURL
	}
	if uploadID != "" {
		ucfg.WorkerID = uploadID
	}
	if uploadToken != "" {
		ucfg.WorkerToken = uploadToken
	}
	client := upload.NewClient(ucfg, logger)

	if uploadFile != "" {
		n, err := client.UploadFile(cmd.Context(), uploadFile, uploadDomain, uploadScanName)
		if err != nil {
			logger.Error("upload failed", "file", uploadFile, "error", err)
			return err
		}
		logger.Info("upload finished", "file", uploadFile, "imported", n)
		return nil
	}

	dir := uploadDir
	if dir == "" {
		// No directory given: pick the freshest scan dir by content.
		resolver := artifact.NewResolver(cfg.Scan.ScanRoots, logger)
		dirs := resolver.BestDirs(uploadDomain, cfg.Scan.DirMaxAge, 1)
		if len(dirs) == 0 {
			logger.Error("no scan directory found under configured roots")
			return errNoScanDir
		}
		dir = dirs[0]
	}

	n, err := client.UploadDir(cmd.Context(), dir, uploadDomain, uploadScanName)
	if err != nil {
		logger.Error("upload failed", "dir", dir, "error", err)
		return err
	}
	logger.Info("upload finished", "dir", dir, "imported", n)
	return nil
}

func init() {
	uploadCmd.Flags().StringVar(&uploadDir, "dir", "", "Scan directory to upload (default: best recent directory)")
	uploadCmd.Flags().StringVar(&uploadFile, "file", "", "Upload a single output file instead of a directory")
	uploadCmd.Flags().StringVar(&uploadDomain, "domain", "", "Default domain to attribute findings to")
	uploadCmd.Flags().StringVar(&uploadScanName, "scan-name", "", "Scan name sent with the payload (default: directory name)")
	uploadCmd.Flags().StringVar(&uploadURL, "url", "", "Central node URL (overrides config)")
	uploadCmd.Flags().StringVar(&uploadID, "worker-id", "", "Worker id (overrides config)")
	uploadCmd.Flags().StringVar(&uploadToken, "worker-token", "", "Worker token (overrides config)")
	uploadCmd.Flags().BoolVar(&uploadNoGzip, "no-gzip", false, "Send the payload uncompressed")
}
