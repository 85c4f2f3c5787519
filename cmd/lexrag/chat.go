package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/lexrag/lexrag/internal/chatlog"
	"github.com/lexrag/lexrag/internal/generate"
	"github.com/lexrag/lexrag/internal/memory"
)

var chatShowSources bool

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Ask legal questions interactively",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		app, err := newApp(ctx, cfg)
		if err != nil {
			return err
		}
		defer app.Close()

		if app.retriever.CorpusSize() == 0 {
			return fmt.Errorf("index is empty; run 'lexrag build' first")
		}

		log, err := chatlog.Open(cfg.ChatDBPath)
		if err != nil {
			return fmt.Errorf("opening chat log: %w", err)
		}
		defer log.Close()

		sessionID := uuid.New().String()
		fmt.Println("Legal assistant for 18 U.S.C. (type 'exit' to quit)")

		scanner := bufio.NewScanner(os.Stdin)
		for {
			fmt.Print("\n> ")
			if !scanner.Scan() {
				break
			}
			question := strings.TrimSpace(scanner.Text())
			if question == "" {
				continue
			}
			if question == "exit" || question == "quit" {
				break
			}

			processed := app.processor.Process(question)
			results := app.retriever.Retrieve(ctx, processed.Cleaned, cfg.RetrievalK, nil)
			if len(results) == 0 {
				fmt.Println("No relevant statute text found.")
				continue
			}

			history := app.memory.RecentHistory(sessionID, 10)
			app.memory.AddUserMessage(sessionID, question)

			var answer *generate.Answer
			stream, err := app.generator.AnswerStream(ctx, question, results, history, func(a *generate.Answer) {
				answer = a
			})
			if err != nil {
				// No model server; fall back to the non-streaming path,
				// which degrades to quoting the sources.
				answer = app.generator.Answer(ctx, question, results, history)
				fmt.Println(answer.Text)
			} else {
				for chunk := range stream {
					if chunk.Error != nil {
						fmt.Printf("\n[generation error: %v]\n", chunk.Error)
						break
					}
					fmt.Print(chunk.Token)
				}
				fmt.Println()
			}
			if answer == nil {
				continue
			}

			app.memory.AddAssistantMessage(sessionID, answer.Text)
			_ = log.Record(ctx, sessionID, memory.RoleUser, question)
			_ = log.Record(ctx, sessionID, memory.RoleAssistant, answer.Text)

			if len(answer.Citations) > 0 {
				fmt.Print("\nCitations: ")
				for i, c := range answer.Citations {
					if i > 0 {
						fmt.Print(", ")
					}
					fmt.Print(c.Statute)
				}
				fmt.Println()
			}

			if chatShowSources {
				fmt.Println("\nSources:")
				for i, res := range results {
					header := res.Chunk.Metadata.Section
					if header == "" {
						header = fmt.Sprintf("chunk %d", res.Chunk.ID)
					}
					fmt.Printf("  [%d] %s (page %d, score %.4f)\n", i+1, header, res.Chunk.Metadata.Page, res.Score)
				}
			}
		}
		return scanner.Err()
	},
}

func init() {
	chatCmd.Flags().BoolVar(&chatShowSources, "show-sources", false, "print retrieved chunks after each answer")
}
