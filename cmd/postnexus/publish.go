// Package main provides the publish command.
package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kimhsiao/postnexus/internal/errors"
)

var publishCmd = &cobra.Command{
	Use:   "publish <id>",
	Short: "Publish a post to the remote store",
	Long: `Publish sends a one-time immutable snapshot of the post to the remote
store. A post can be published at most once; re-running publish on an
uploaded post is rejected without contacting the remote store.`,
	Args: cobra.ExactArgs(1),
	RunE: runPublish,
}

func init() {
	rootCmd.AddCommand(publishCmd)
}

func runPublish(cmd *cobra.Command, args []string) error {
	if globalUploader == nil {
		return fmt.Errorf("remote publishing is not configured; set remote.api_url and remote.api_key")
	}

	id, err := parseID(args[0])
	if err != nil {
		return err
	}

	ref, err := globalUploader.Publish(cmd.Context(), id)
	if err != nil {
		switch errors.CodeOf(err) {
		case errors.ErrAlreadyUploaded:
			return fmt.Errorf("already uploaded: %w", err)
		case errors.ErrUploadOutcomeUnknown:
			return fmt.Errorf("publish outcome unknown - check the remote store before retrying: %w", err)
		case errors.ErrRemoteRejected:
			return fmt.Errorf("remote store rejected the publish, try again later: %w", err)
		default:
			return err
		}
	}

	fmt.Printf("Published post %d as %s\n", id, ref)
	return nil
}
