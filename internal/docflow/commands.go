package docflow

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/term"

	"github.com/filconv/filconv/internal/pdfops"
	"github.com/filconv/filconv/pkg/client"
	"github.com/filconv/filconv/pkg/workflow"
)

func (a *App) convert(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("%w: convert <file> <format>", ErrUsage)
	}
	file, err := workflow.FromPath(args[0])
	if err != nil {
		return err
	}
	flow := workflow.NewConvertFlow()
	if err := flow.SelectFile(file); err != nil {
		return err
	}
	if err := flow.SelectFormat(args[1]); err != nil {
		return fmt.Errorf("%s: %w", args[1], err)
	}
	out, err := flow.Submit(ctx, a.api)
	if err != nil {
		return fmt.Errorf("conversion failed: %s", flow.Error())
	}
	path, err := a.save(out.Name, out.Data)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Conversion Successful! Saved %s (%d bytes)\n", path, len(out.Data))
	return nil
}

func (a *App) merge(ctx context.Context, args []string) error {
	if len(args) < 3 {
		return fmt.Errorf("%w: merge <out.pdf> <a.pdf> <b.pdf>...", ErrUsage)
	}
	flow := workflow.NewMergeFlow()
	for _, p := range args[1:] {
		f, err := workflow.FromPath(p)
		if err != nil {
			return err
		}
		if err := flow.Add(f); err != nil {
			return fmt.Errorf("%s: %w", p, err)
		}
	}
	res, err := flow.Submit(ctx, a.api)
	if err != nil {
		return fmt.Errorf("merge failed: %s", flow.Error())
	}
	got, err := a.api.Download(ctx, res.DownloadURL)
	if err != nil {
		return err
	}
	target := args[0]
	if !strings.EqualFold(filepath.Ext(target), ".pdf") {
		target += ".pdf"
	}
	path, err := a.save(target, got.Data)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Merged %d files into %s\n", len(flow.Files()), path)
	return nil
}

func (a *App) split(ctx context.Context, args []string) error {
	if len(args) < 1 || len(args) > 2 {
		return fmt.Errorf("%w: split <file.pdf> [method]", ErrUsage)
	}
	file, err := workflow.FromPath(args[0])
	if err != nil {
		return err
	}
	flow := workflow.NewSplitFlow()
	if err := flow.SelectFile(file); err != nil {
		return fmt.Errorf("%s: %w", args[0], err)
	}
	if len(args) == 2 {
		if err := flow.SetMethod(args[1]); err != nil {
			return err
		}
	}
	res, err := flow.Submit(ctx, a.api)
	if err != nil {
		return fmt.Errorf("split failed: %s", flow.Error())
	}
	path, err := a.fetch(ctx, res)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Split into %d parts: %s\n", res.Parts, path)
	return nil
}

func (a *App) compress(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("%w: compress <file.pdf>", ErrUsage)
	}
	file, err := workflow.FromPath(args[0])
	if err != nil {
		return err
	}
	if !file.IsPDF() {
		return fmt.Errorf("%s: %w", args[0], workflow.ErrNotPDF)
	}
	rc, err := file.Open()
	if err != nil {
		return err
	}
	defer rc.Close()
	res, err := a.api.Compress(ctx, client.File{Name: file.Name, ContentType: "application/pdf", Data: rc})
	if err != nil {
		return fmt.Errorf("compression failed: %w", err)
	}
	path, err := a.fetch(ctx, res)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Compressed %d -> %d bytes: %s\n", res.OriginalSize, res.CompressedSize, path)
	return nil
}

// fetch downloads a handoff result and saves it under the name the
// server suggests.
func (a *App) fetch(ctx context.Context, res *client.Handoff) (string, error) {
	got, err := a.api.Download(ctx, res.DownloadURL)
	if err != nil {
		return "", err
	}
	name := got.Name
	if name == "" {
		name = res.FileName
	}
	return a.save(name, got.Data)
}

// info prints the page layout of a local PDF without contacting the server.
func (a *App) info(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("%w: info <file.pdf>", ErrUsage)
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}
	sizes, err := pdfops.PageSizes(data)
	if err != nil {
		return fmt.Errorf("%s: %w", args[0], err)
	}
	fmt.Fprintf(a.out, "%s: %d pages\n", filepath.Base(args[0]), len(sizes))
	for i, sz := range sizes {
		fmt.Fprintf(a.out, "  %3d  %.0f x %.0f pt\n", i+1, sz.Width, sz.Height)
	}
	return nil
}

func (a *App) formats() error {
	for _, c := range workflow.Formats() {
		fmt.Fprintf(a.out, "%-13s %s\n", c.Name+":", strings.ToLower(strings.Join(c.Formats, " ")))
	}
	return nil
}

func (a *App) bootID(ctx context.Context) error {
	id, err := a.api.BootID(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "boot id: %d\n", id)
	user, err := a.session.Username(ctx)
	if err != nil {
		return err
	}
	if user != "" {
		fmt.Fprintf(a.out, "logged in as %s\n", user)
	}
	return nil
}

// readPassword is a test seam for term.ReadPassword.
var readPassword = term.ReadPassword

// password returns args[i] or prompts for it without echo.
func (a *App) password(args []string, i int) (string, error) {
	if len(args) > i {
		return args[i], nil
	}
	fmt.Fprint(a.out, "Password: ")
	pw, err := readPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(a.out)
	if err != nil {
		return "", err
	}
	return string(pw), nil
}

func (a *App) signup(ctx context.Context, args []string) error {
	if len(args) < 2 || len(args) > 3 {
		return fmt.Errorf("%w: signup <username> <email> [password]", ErrUsage)
	}
	pw, err := a.password(args, 2)
	if err != nil {
		return err
	}
	u, err := a.api.Signup(ctx, args[0], args[1], pw)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "registered %s\n", u.Username)
	return nil
}

func (a *App) login(ctx context.Context, args []string) error {
	if len(args) < 1 || len(args) > 2 {
		return fmt.Errorf("%w: login <email> [password]", ErrUsage)
	}
	pw, err := a.password(args, 1)
	if err != nil {
		return err
	}
	s, err := a.api.Login(ctx, args[0], pw)
	if err != nil {
		return err
	}
	// a new login replaces whoever was cached
	if err := a.session.Logout(ctx); err != nil {
		return err
	}
	user, err := a.session.Adopt(ctx, s.User.Username)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "logged in as %s\n", user)
	return nil
}

func (a *App) logout(ctx context.Context) error {
	if err := a.session.Logout(ctx); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "logged out")
	return nil
}
