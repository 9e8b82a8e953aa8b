// Package main provides the post management commands.
package main

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/kimhsiao/postnexus/internal/models"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List posts, newest first",
	RunE:  runList,
}

var addCmd = &cobra.Command{
	Use:   "add",
	Short: "Create a new post",
	RunE:  runAdd,
}

var showCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a single post",
	Args:  cobra.ExactArgs(1),
	RunE:  runShow,
}

var editCmd = &cobra.Command{
	Use:   "edit <id>",
	Short: "Edit a post's title, body, or image",
	Args:  cobra.ExactArgs(1),
	RunE:  runEdit,
}

var deleteCmd = &cobra.Command{
	Use:   "delete <id>...",
	Short: "Delete one or more posts",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runDelete,
}

var shareCmd = &cobra.Command{
	Use:   "share <id>",
	Short: "Print a post as shareable text",
	Args:  cobra.ExactArgs(1),
	RunE:  runShare,
}

// Flags
var (
	listSearch string
	addTitle   string
	addBody    string
	addImage   string
	editTitle  string
	editBody   string
	editImage  string
)

func init() {
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(addCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(editCmd)
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(shareCmd)

	listCmd.Flags().StringVar(&listSearch, "search", "", "Filter by title/body substring")

	addCmd.Flags().StringVar(&addTitle, "title", "", "Post title")
	addCmd.Flags().StringVar(&addBody, "body", "", "Post body (required)")
	addCmd.Flags().StringVar(&addImage, "image", "", "Image locator to attach")
	_ = addCmd.MarkFlagRequired("body")

	editCmd.Flags().StringVar(&editTitle, "title", "", "New title")
	editCmd.Flags().StringVar(&editBody, "body", "", "New body")
	editCmd.Flags().StringVar(&editImage, "image", "", "New image locator")
}

func runList(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), awaitTimeout)
	defer cancel()

	posts, err := globalRepo.Search(listSearch).Await(ctx)
	if err != nil {
		return err
	}
	if len(posts) == 0 {
		fmt.Println("No posts.")
		return nil
	}
	for _, p := range posts {
		status := "local"
		if p.Uploaded {
			status = "uploaded"
		}
		fmt.Printf("%4d  %-10s %-20s %s\n",
			p.ID, status, p.UpdatedAtTime().Format("2006-01-02 15:04"), p.DisplayTitle())
	}
	return nil
}

func runAdd(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), awaitTimeout)
	defer cancel()

	draft := &models.Draft{Title: addTitle, Body: addBody, ImageURI: addImage}
	id, err := globalRepo.Insert(draft).Await(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("Created post %d\n", id)
	return nil
}

func runShow(cmd *cobra.Command, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), awaitTimeout)
	defer cancel()

	p, err := globalRepo.GetByID(id).Await(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("Title:    %s\n", p.DisplayTitle())
	fmt.Printf("Created:  %s\n", p.CreatedAtTime().Format(time.RFC1123))
	fmt.Printf("Updated:  %s\n", p.UpdatedAtTime().Format(time.RFC1123))
	if p.ImageURI != "" {
		fmt.Printf("Image:    %s\n", p.ImageURI)
	}
	if p.Uploaded {
		fmt.Printf("Status:   Uploaded (%s)\n", p.UploadRef)
	} else {
		fmt.Printf("Status:   Offline\n")
	}
	fmt.Printf("\n%s\n", p.Body)
	return nil
}

func runEdit(cmd *cobra.Command, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), awaitTimeout)
	defer cancel()

	p, err := globalRepo.GetByID(id).Await(ctx)
	if err != nil {
		return err
	}

	if cmd.Flags().Changed("title") {
		p.Title = editTitle
	}
	if cmd.Flags().Changed("body") {
		p.Body = editBody
	}
	if cmd.Flags().Changed("image") {
		p.ImageURI = editImage
	}

	if _, err := globalRepo.Update(p).Await(ctx); err != nil {
		return err
	}
	fmt.Printf("Updated post %d\n", id)
	return nil
}

func runDelete(cmd *cobra.Command, args []string) error {
	ids := make([]int64, 0, len(args))
	for _, arg := range args {
		id, err := parseID(arg)
		if err != nil {
			return err
		}
		ids = append(ids, id)
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), awaitTimeout)
	defer cancel()

	count, err := globalRepo.DeleteByIDs(ids).Await(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("Deleted %d post(s)\n", count)
	return nil
}

func runShare(cmd *cobra.Command, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), awaitTimeout)
	defer cancel()

	p, err := globalRepo.GetByID(id).Await(ctx)
	if err != nil {
		return err
	}

	fmt.Println(p.ShareText())
	if p.ImageURI != "" {
		fmt.Printf("\n[image: %s]\n", p.ImageURI)
	}
	return nil
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid post id %q", s)
	}
	return id, nil
}
