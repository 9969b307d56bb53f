// Package terminal runs the chat pipeline as an interactive prompt.
package terminal

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/candeladavila/Team-Bingo-Malackaton-2025/internal/pipeline"
	"github.com/charmbracelet/lipgloss"
	"github.com/jonboulle/clockwork"
)

const (
	quitCommand    = "salir"
	maxHistory     = 20
	maxLineBytes   = 64 * 1024
	dataUsedMarker = "[Consulta inteligente a base de datos]"
)

var examples = []string{
	"¿Cuántos casos de depresión hay en Madrid?",
	"¿Qué comunidad tiene más casos?",
	"Me siento muy solo últimamente",
}

type Replier interface {
	Reply(ctx context.Context, req pipeline.Request) (pipeline.Response, error)
	Provider() string
}

type Config struct {
	Logger   *slog.Logger
	Pipeline Replier
	In       io.Reader
	Out      io.Writer
	Clock    clockwork.Clock

	// DatabaseConnected is shown in the banner.
	DatabaseConnected bool
}

func (c *Config) Validate() error {
	if c.Logger == nil {
		return errors.New("logger is required")
	}
	if c.Pipeline == nil {
		return errors.New("pipeline is required")
	}
	if c.In == nil {
		return errors.New("input is required")
	}
	if c.Out == nil {
		return errors.New("output is required")
	}
	if c.Clock == nil {
		c.Clock = clockwork.NewRealClock()
	}
	return nil
}

type styles struct {
	title  lipgloss.Style
	box    lipgloss.Style
	user   lipgloss.Style
	bot    lipgloss.Style
	muted  lipgloss.Style
	marker lipgloss.Style
}

func newStyles(out io.Writer) styles {
	r := lipgloss.NewRenderer(out)
	return styles{
		title:  r.NewStyle().Bold(true).Foreground(lipgloss.Color("#2CD7C7")),
		box:    r.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("#16858E")).Padding(0, 1),
		user:   r.NewStyle().Bold(true),
		bot:    r.NewStyle().Bold(true).Foreground(lipgloss.Color("#20B9B4")),
		muted:  r.NewStyle().Foreground(lipgloss.Color("241")),
		marker: r.NewStyle().Foreground(lipgloss.Color("#F4D03F")),
	}
}

type Chat struct {
	log     *slog.Logger
	cfg     *Config
	styles  styles
	history []pipeline.Message
}

func New(cfg *Config) (*Chat, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Chat{
		log:    cfg.Logger,
		cfg:    cfg,
		styles: newStyles(cfg.Out),
	}, nil
}

// Run reads messages until "salir", end of input, or ctx is done. The input
// reader goroutine exits once Run returns unless it is blocked in Read.
func (c *Chat) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	c.printBanner()

	lines := make(chan string)
	scanErr := make(chan error, 1)
	go func() {
		var err error
		defer func() {
			scanErr <- err
			close(lines)
		}()
		scanner := bufio.NewScanner(c.cfg.In)
		scanner.Buffer(make([]byte, 0, 4096), maxLineBytes)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		err = scanner.Err()
	}()

	for {
		c.printf("\n%s ", c.styles.user.Render("👤 Tú:"))

		var line string
		select {
		case <-ctx.Done():
			c.goodbye()
			return nil
		case l, ok := <-lines:
			if !ok {
				c.goodbye()
				if err := <-scanErr; err != nil {
					return fmt.Errorf("failed to read input: %w", err)
				}
				return nil
			}
			line = strings.TrimSpace(l)
		}

		if line == "" {
			continue
		}
		if strings.EqualFold(line, quitCommand) {
			c.goodbye()
			return nil
		}

		if err := c.answer(ctx, line); err != nil {
			c.goodbye()
			return nil
		}
	}
}

func (c *Chat) answer(ctx context.Context, msg string) error {
	c.printf("%s\n", c.styles.muted.Render("   Procesando..."))
	start := c.cfg.Clock.Now()

	resp, err := c.cfg.Pipeline.Reply(ctx, pipeline.Request{Message: msg, History: c.history})
	if err != nil {
		if ctx.Err() != nil {
			return err
		}
		c.log.Warn("terminal: reply failed", "error", err)
		resp = pipeline.Response{Reply: pipeline.FallbackReply(false), Provider: c.cfg.Pipeline.Provider()}
	}
	elapsed := c.cfg.Clock.Since(start)

	c.printf("\n%s %s\n", c.styles.bot.Render("🤖 Acompaña:"), resp.Reply)
	if resp.UsedData {
		c.printf("%s\n", c.styles.marker.Render(dataUsedMarker))
	}
	c.printf("%s\n", c.styles.muted.Render(fmt.Sprintf("   %s · %s", resp.Provider, elapsed.Round(time.Millisecond))))

	now := c.cfg.Clock.Now().UTC()
	c.history = append(c.history,
		pipeline.Message{Role: "user", Content: msg, Timestamp: now},
		pipeline.Message{Role: "assistant", Content: resp.Reply, Timestamp: now},
	)
	if len(c.history) > maxHistory {
		c.history = c.history[len(c.history)-maxHistory:]
	}
	return nil
}

func (c *Chat) printBanner() {
	database := "sin base de datos"
	if c.cfg.DatabaseConnected {
		database = "base de datos conectada"
	}

	var b strings.Builder
	b.WriteString(c.styles.title.Render(`🤖 Chatbot "Acompaña" iniciado`))
	fmt.Fprintf(&b, "\nProveedor: %s · %s\n", c.cfg.Pipeline.Provider(), database)
	b.WriteString("Escribe tu consulta o \"salir\" para terminar.\n\nEjemplos:")
	for _, ex := range examples {
		fmt.Fprintf(&b, "\n  • %s", ex)
	}
	fmt.Fprintf(&b, "\n\nSi estás en crisis llama al %s (24/7).", pipeline.CrisisPhone)

	c.printf("%s\n", c.styles.box.Render(b.String()))
}

func (c *Chat) goodbye() {
	c.printf("\n%s\n", "💙 ¡Hasta pronto! Cuídate.")
}

func (c *Chat) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(c.cfg.Out, format, args...)
}
