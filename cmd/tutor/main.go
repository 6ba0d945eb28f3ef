// Package main contains the entrypoint for the terminal tutor client.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/peterh/liner"

	"github.com/yuehan/english-tutor/internal/chat"
	"github.com/yuehan/english-tutor/internal/config"
	"github.com/yuehan/english-tutor/internal/httpretry"
	"github.com/yuehan/english-tutor/internal/logger"
	"github.com/yuehan/english-tutor/internal/storage"
	"github.com/yuehan/english-tutor/internal/tutor"
)

var practiceModes = []chat.PracticeMode{
	chat.ModeFreeTalk,
	chat.ModeScenario,
	chat.ModeGrammarFocus,
	chat.ModePronunciation,
	chat.ModeVocabulary,
}

// quickActions are one-keystroke conversation starters.
var quickActions = []string{
	"Let's practice ordering food at a restaurant.",
	"Teach me a useful English idiom and how to use it.",
	"Can you check my grammar as we chat and correct my mistakes?",
	"Let's do a job interview role play.",
	"Teach me five new words about daily life.",
}

func main() {
	os.Exit(run(context.Background()))
}

func run(ctx context.Context) int {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		return 1
	}

	// Text logs interleave with the conversation more readably than JSON.
	log := logger.New(cfg.Log.Level, false)
	slog.SetDefault(log)

	db, err := storage.Open(cfg.Storage.Path)
	if err != nil {
		log.Error("Failed to open cache database", "path", cfg.Storage.Path, "error", err)
		return 1
	}
	defer storage.Close(db)
	store := storage.NewStore(db, log, cfg.Storage.QuotaBytes, cfg.Storage.Debounce)

	pipeline := tutor.NewPipeline(ctx, log, cfg, store, httpretry.New(log))
	defer pipeline.Flush(context.Background())

	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)

	fmt.Println("English Tutor 英语家教")
	fmt.Printf("Practice mode: %s. Type /help for commands.\n", pipeline.Mode())
	if n := len(pipeline.Messages()); n > 0 {
		fmt.Printf("Restored %d messages from your last session.\n", n)
	}
	if streak := pipeline.Streak(); streak > 1 {
		fmt.Printf("You're on a %d-day practice streak! 连续练习%d天！\n", streak, streak)
	}
	fmt.Println()

	for {
		input, err := line.Prompt("you> ")
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) {
				fmt.Println("Goodbye! 再见！")
				return 0
			}
			// io.EOF on Ctrl-D.
			fmt.Println()
			return 0
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		line.AppendHistory(input)

		if strings.HasPrefix(input, "/") {
			prompt, quit := command(ctx, pipeline, input)
			if quit {
				fmt.Println("Goodbye! 再见！")
				return 0
			}
			if prompt == "" {
				continue
			}
			input = prompt
			fmt.Printf("you> %s\n", input)
		}

		reply, err := pipeline.Send(ctx, input)
		if err != nil {
			fmt.Println(err.Error())
			continue
		}
		fmt.Printf("tutor> %s\n\n", reply.Content)
	}
}

// command dispatches a /-prefixed input. It returns a prompt to send through
// the pipeline (for quick actions) and whether to quit.
func command(ctx context.Context, p *tutor.Pipeline, input string) (string, bool) {
	name, arg, _ := strings.Cut(input, " ")
	arg = strings.TrimSpace(arg)

	switch name {
	case "/quit", "/exit":
		return "", true

	case "/help":
		fmt.Println("Commands:")
		fmt.Println("  /mode <name>  switch practice mode:", modeNames())
		fmt.Println("  /quick [n]    list quick-start prompts, or send prompt n")
		fmt.Println("  /level        show your assessed level")
		fmt.Println("  /streak       show your daily practice streak")
		fmt.Println("  /clear        clear the conversation (progress is kept)")
		fmt.Println("  /reset        erase all stored progress")
		fmt.Println("  /quit         exit")

	case "/mode":
		mode := chat.PracticeMode(arg)
		for _, m := range practiceModes {
			if m == mode {
				p.SetMode(mode)
				fmt.Printf("Practice mode set to %s.\n", mode)
				return "", false
			}
		}
		fmt.Println("Unknown mode. Available:", modeNames())

	case "/quick":
		if n, err := strconv.Atoi(arg); err == nil && n >= 1 && n <= len(quickActions) {
			return quickActions[n-1], false
		}
		fmt.Println("Quick starts:")
		for i, action := range quickActions {
			fmt.Printf("  %d. %s\n", i+1, action)
		}
		fmt.Println("Send one with /quick <number>.")

	case "/level":
		level := p.Level()
		if level == nil {
			fmt.Println("Not assessed yet. Keep chatting! 继续聊天，稍后评估。")
			return "", false
		}
		fmt.Printf("Level: %s (confidence %.0f%%), last assessed %s\n",
			level.Level, level.Confidence*100, level.LastAssessed.Format("2006-01-02"))

	case "/streak":
		fmt.Printf("Practice streak: %d day(s). 连续练习%d天。\n", p.Streak(), p.Streak())

	case "/clear":
		p.Clear(ctx)
		fmt.Println("Conversation cleared. 对话已清空。")

	case "/reset":
		p.Reset(ctx)
		fmt.Println("All progress erased. 所有进度已清除。")

	default:
		fmt.Println("Unknown command. Type /help for a list.")
	}
	return "", false
}

func modeNames() string {
	names := make([]string, len(practiceModes))
	for i, m := range practiceModes {
		names[i] = string(m)
	}
	return strings.Join(names, ", ")
}
