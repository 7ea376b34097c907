// File: cmd/chat.go
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/chatrelay/chatrelay/data"
	"github.com/chatrelay/chatrelay/service"
	openai "github.com/sashabaranov/go-openai"
)

// consoleSink streams the answer to stdout, printing only the new suffix
// of each snapshot so output appears as a continuous flow.
type consoleSink struct {
	printedContent  int
	printedThinking int
	inThinking      bool
}

func (c *consoleSink) OnUpdate(snap service.Snapshot) {
	if len(snap.ThinkingContent) > c.printedThinking {
		if !c.inThinking {
			fmt.Fprint(os.Stderr, "[thinking] ")
			c.inThinking = true
		}
		fmt.Fprint(os.Stderr, snap.ThinkingContent[c.printedThinking:])
		c.printedThinking = len(snap.ThinkingContent)
	}
	if len(snap.Content) > c.printedContent {
		if c.inThinking {
			fmt.Fprintln(os.Stderr)
			c.inThinking = false
		}
		fmt.Print(snap.Content[c.printedContent:])
		c.printedContent = len(snap.Content)
	}
	if snap.ToolStatus != "" {
		service.Debugf("tool status: %s", snap.ToolStatus)
	}
}

func (c *consoleSink) OnFinal(final service.FinalSnapshot) {
	fmt.Println()
	if len(final.SearchResults) > 0 {
		fmt.Println()
		fmt.Print(service.FormatCitations(final.SearchResults, referenceFlag))
	}
	if service.IncludeUsageMetainfo() && !final.Usage.Empty() {
		fmt.Printf("\n%s\n", final.Usage.String())
	}
}

func (c *consoleSink) OnFailure(reason string) {
	fmt.Fprintf(os.Stderr, "\nstream failed: %s\n", reason)
}

func runPrompt(prompt string) error {
	store := data.NewConfigStore()
	model, err := store.GetModel(modelFlag)
	if err != nil {
		return err
	}

	searchCfg := store.GetSearchConfig()
	if !searchFlag {
		searchCfg.Name = service.NoneSearchEngine
	}
	if referenceFlag <= 0 {
		referenceFlag = searchCfg.Reference
	}
	engine := &service.SearchEngine{
		Name:       searchCfg.Name,
		APIKey:     searchCfg.APIKey,
		CxKey:      searchCfg.CxKey,
		MaxResults: searchCfg.MaxResults,
		FetchPages: searchCfg.FetchPages,
	}

	coordinator, searchCap := service.DefaultCapabilities(engine)
	transport := service.NewOpenChatTransport(model.Key, model.Endpoint, coordinator.Definitions())

	sessionKey := convoFlag
	session := service.NewStreamSession(sessionKey, model.Model)
	if sessionKey == "" {
		sessionKey = session.ID
	}

	registry := service.NewSessionRegistry(time.Duration(store.GetSessionTTLMinutes()) * time.Minute)
	if _, err := registry.Create(sessionKey, session); err != nil {
		return err
	}
	registry.MarkForegroundActive(sessionKey)

	transcripts := data.NewTranscriptStore()
	hooks := service.SessionHooks{
		OnProgress: func(key, partial string) {
			if err := transcripts.Save(key, partial); err != nil {
				service.Debugf("transcript save failed: %v", err)
			}
		},
		OnComplete: func(key, final string) {
			if err := transcripts.Save(key, final); err != nil {
				service.Warnf("transcript save failed: %v", err)
			}
			registry.Complete(key, final)
		},
	}

	messages := []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleUser, Content: strings.TrimSpace(prompt)},
	}

	sink := &consoleSink{}
	controller := service.NewSessionController(
		session, transport, coordinator, searchCap, messages, hooks,
		service.WithMaxContinuations(store.GetMaxContinuations()),
		service.WithMaxReferences(referenceFlag),
		service.WithFailureCallback(sink.OnFailure),
	)

	// Ctrl-C flips the session's cancel token; both tasks notice
	// cooperatively.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt)
	defer signal.Stop(sigCh)
	go func() {
		<-sigCh
		session.Cancel.Cancel()
	}()

	ctx := context.Background()
	runErr := make(chan error, 1)
	go func() {
		runErr <- controller.Run(ctx)
	}()

	scheduler := service.NewUpdateScheduler(session, sink, hooks)
	scheduler.Run(ctx, func() ([]service.ToolResult, []service.SearchResult) {
		return controller.ToolResults(), controller.Sources()
	})

	if err := <-runErr; err != nil && err != service.ErrCancelled {
		return err
	}
	return nil
}
