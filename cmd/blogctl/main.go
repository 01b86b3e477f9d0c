// Command blogctl is a terminal client for the blog API.
//
//	blogctl register -username alice -email alice@example.com -password secret
//	blogctl login -login alice -password secret
//	blogctl create -title "Hello" -content "First post"
//	blogctl posts
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/BorisDmv/blog-platform/internal/client"
	"github.com/BorisDmv/blog-platform/internal/models"
	"github.com/BorisDmv/blog-platform/internal/session"
)

const (
	defaultAPI     = "http://localhost:8080/api/v1"
	defaultSession = ".blogctl.json"
)

const usage = `usage: blogctl <command> [flags]

commands:
  register     create an account and sign in
  login        sign in with email or username
  logout       forget the stored session
  whoami       show the signed-in user
  posts        list all posts
  post <id>    show one post (-slug to look up by slug)
  mine         list your posts
  create       create a post
  edit <id>    change title and/or content of your post
  delete <id>  delete your post
  generate     draft text from a prompt

environment:
  BLOGCTL_API      API base URL (default ` + defaultAPI + `)
  BLOGCTL_SESSION  session file (default $HOME/` + defaultSession + `)
`

var errUsage = errors.New("usage")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	err := run(ctx, os.Args[1:], os.Getenv, os.Stdout)
	switch {
	case err == nil:
	case errors.Is(err, errUsage), errors.Is(err, flag.ErrHelp):
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	default:
		fmt.Fprintln(os.Stderr, "blogctl:", err)
		os.Exit(1)
	}
}

type app struct {
	client *client.Client
	state  *session.State
	out    io.Writer
}

func run(ctx context.Context, args []string, getenv func(string) string, out io.Writer) error {
	if len(args) == 0 {
		return errUsage
	}

	sessionPath := getenv("BLOGCTL_SESSION")
	if sessionPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("locate home directory: %w", err)
		}
		sessionPath = filepath.Join(home, defaultSession)
	}
	apiURL := getenv("BLOGCTL_API")
	if apiURL == "" {
		apiURL = defaultAPI
	}

	state, err := session.Load(sessionPath)
	if err != nil {
		return err
	}

	a := &app{
		client: client.New(apiURL, state),
		state:  state,
		out:    out,
	}

	cmd, rest := args[0], args[1:]
	wasLoggedIn := state.LoggedIn()

	err = a.dispatch(ctx, cmd, rest)

	// A 401 signs the session out inside the client; persist that too.
	if wasLoggedIn != state.LoggedIn() || cmd == "login" || cmd == "register" {
		if saveErr := state.Save(sessionPath); saveErr != nil {
			return errors.Join(err, saveErr)
		}
	}
	if errors.Is(err, client.ErrNotLoggedIn) {
		return fmt.Errorf("%w: run blogctl login first", err)
	}
	return err
}

func (a *app) dispatch(ctx context.Context, cmd string, args []string) error {
	switch cmd {
	case "register":
		return a.register(ctx, args)
	case "login":
		return a.login(ctx, args)
	case "logout":
		a.client.Logout()
		fmt.Fprintln(a.out, "logged out")
		return nil
	case "whoami":
		return a.whoami()
	case "posts":
		return a.listPosts(ctx, false)
	case "mine":
		return a.listPosts(ctx, true)
	case "post":
		return a.showPost(ctx, args)
	case "create":
		return a.create(ctx, args)
	case "edit":
		return a.edit(ctx, args)
	case "delete":
		return a.remove(ctx, args)
	case "generate":
		return a.generate(ctx, args)
	case "help", "-h", "--help":
		return errUsage
	default:
		return fmt.Errorf("%w: unknown command %q", errUsage, cmd)
	}
}

func newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

func (a *app) register(ctx context.Context, args []string) error {
	fs := newFlagSet("register")
	username := fs.String("username", "", "username")
	email := fs.String("email", "", "email address")
	password := fs.String("password", "", "password")
	if err := fs.Parse(args); err != nil {
		return err
	}

	user, err := a.client.Register(ctx, *username, *email, *password)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "registered and signed in as %s\n", user.Username)
	return nil
}

func (a *app) login(ctx context.Context, args []string) error {
	fs := newFlagSet("login")
	login := fs.String("login", "", "email or username")
	password := fs.String("password", "", "password")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *login == "" || *password == "" {
		return fmt.Errorf("%w: login needs -login and -password", errUsage)
	}

	user, err := a.client.Login(ctx, *login, *password)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "signed in as %s\n", user.Username)
	return nil
}

func (a *app) whoami() error {
	user, _, ok := a.state.Current()
	if !ok {
		return client.ErrNotLoggedIn
	}
	fmt.Fprintf(a.out, "%s <%s> (%s)\n", user.Username, user.Email, user.ID)
	return nil
}

func (a *app) listPosts(ctx context.Context, mine bool) error {
	var (
		posts []models.Post
		err   error
	)
	if mine {
		posts, err = a.client.MyPosts(ctx)
	} else {
		posts, err = a.client.ListPosts(ctx)
	}
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tAUTHOR\tCREATED\tTITLE")
	for _, p := range posts {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", p.ID, p.Author, p.CreatedAt.Format("2006-01-02 15:04"), p.Title)
	}
	return tw.Flush()
}

func (a *app) showPost(ctx context.Context, args []string) error {
	fs := newFlagSet("post")
	slug := fs.String("slug", "", "look the post up by slug")
	asJSON := fs.Bool("json", false, "print the raw JSON document")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var (
		post *models.Post
		err  error
	)
	switch {
	case *slug != "":
		post, err = a.client.GetPostBySlug(ctx, *slug)
	case fs.NArg() == 1:
		post, err = a.client.GetPost(ctx, fs.Arg(0))
	default:
		return fmt.Errorf("%w: post needs an id or -slug", errUsage)
	}
	if err != nil {
		return err
	}

	if *asJSON {
		enc := json.NewEncoder(a.out)
		enc.SetIndent("", "  ")
		return enc.Encode(post)
	}
	fmt.Fprintf(a.out, "%s\nby %s on %s  [%s]\n\n%s\n",
		post.Title, post.Author, post.CreatedAt.Format("2006-01-02 15:04"), post.Slug, post.Content)
	return nil
}

// readContent returns the -content value, or the file named by -file
// ("-" for stdin).
func readContent(content, file string) (string, bool, error) {
	switch {
	case file == "-":
		raw, err := io.ReadAll(os.Stdin)
		return string(raw), true, err
	case file != "":
		raw, err := os.ReadFile(file)
		return string(raw), true, err
	default:
		return content, content != "", nil
	}
}

func (a *app) create(ctx context.Context, args []string) error {
	fs := newFlagSet("create")
	title := fs.String("title", "", "post title")
	content := fs.String("content", "", "post body")
	file := fs.String("file", "", "read the body from a file, - for stdin")
	if err := fs.Parse(args); err != nil {
		return err
	}

	body, _, err := readContent(*content, *file)
	if err != nil {
		return fmt.Errorf("read content: %w", err)
	}

	post, err := a.client.CreatePost(ctx, *title, body)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "created %s (%s)\n", post.ID, post.Slug)
	return nil
}

func (a *app) edit(ctx context.Context, args []string) error {
	if len(args) == 0 || strings.HasPrefix(args[0], "-") {
		return fmt.Errorf("%w: edit needs a post id", errUsage)
	}
	id := args[0]

	fs := newFlagSet("edit")
	title := fs.String("title", "", "new title")
	content := fs.String("content", "", "new body")
	file := fs.String("file", "", "read the new body from a file, - for stdin")
	if err := fs.Parse(args[1:]); err != nil {
		return err
	}

	var titlePtr, contentPtr *string
	if *title != "" {
		titlePtr = title
	}
	body, set, err := readContent(*content, *file)
	if err != nil {
		return fmt.Errorf("read content: %w", err)
	}
	if set {
		contentPtr = &body
	}
	if titlePtr == nil && contentPtr == nil {
		return fmt.Errorf("%w: edit needs -title, -content or -file", errUsage)
	}

	post, err := a.client.UpdatePost(ctx, id, titlePtr, contentPtr)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "updated %s\n", post.ID)
	return nil
}

func (a *app) remove(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("%w: delete needs a post id", errUsage)
	}
	if err := a.client.DeletePost(ctx, args[0]); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "deleted %s\n", args[0])
	return nil
}

func (a *app) generate(ctx context.Context, args []string) error {
	fs := newFlagSet("generate")
	prompt := fs.String("prompt", "", "prompt text")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *prompt == "" {
		*prompt = strings.Join(fs.Args(), " ")
	}

	text, err := a.client.Generate(ctx, *prompt)
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, text)
	return nil
}
