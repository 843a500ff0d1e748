package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spigell/cv-screener/internal/conversation"
	"github.com/spigell/cv-screener/internal/screening"
)

const (
	PromptAnswer    = "Answer"
	PromptEditField = "Edit a field"
	PromptRestart   = "Restart"
	PromptShowDraft = "Show draft"
	PromptExit      = "Exit"
	PromptBack      = "back"
)

var errExit = errors.New("exit requested")

var chatPrompt = promptui.Select{
	Label: "What next?",
	Items: []string{PromptAnswer, PromptEditField, PromptRestart, PromptShowDraft, PromptExit},
}

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Collect a job posting in a guided conversation",
	Run: func(cmd *cobra.Command, _ []string) {
		chat(cmd.Context(), cmd)
	},
}

func init() {
	rootCmd.AddCommand(chatCmd)

	chatCmd.Flags().StringP("session", "s", "", "resume an existing session")
	chatCmd.Flags().StringP("language", "l", "", "language hint for a new session (en, ru, uz)")
}

func chat(ctx context.Context, cmd *cobra.Command) {
	a := setup(ctx)
	defer a.Close()

	var (
		res *screening.TurnResponse
		err error
	)
	if id := cmd.Flag("session").Value.String(); id != "" {
		res, err = resume(ctx, a, id)
	} else {
		res, err = a.service.Turn(ctx, screening.TurnRequest{LanguageHint: cmd.Flag("language").Value.String()})
	}
	if err != nil {
		fail(a.logger, "starting the conversation", err)
	}

	a.logger.Info("conversation started",
		zap.String("session_id", res.SessionID),
		zap.String("language", res.Language),
	)
	show(res)

	for {
		if res.RecordID != "" {
			a.logger.Info("job posting created",
				zap.String("session_id", res.SessionID),
				zap.String("record_id", res.RecordID),
			)
			return
		}

		_, action, err := chatPrompt.Run()
		if err != nil {
			a.logger.Info("exiting", zap.String("session_id", res.SessionID), zap.Error(err))
			return
		}

		next, err := handleChatAction(ctx, a, action, res)
		if err != nil {
			if errors.Is(err, errExit) || errors.Is(err, promptui.ErrInterrupt) || errors.Is(err, promptui.ErrEOF) {
				a.logger.Info("exiting", zap.String("session_id", res.SessionID))
				return
			}
			fail(a.logger, "conversation turn", err)
		}
		if next != nil {
			res = next
			show(res)
		}
	}
}

func handleChatAction(ctx context.Context, a *application, action string, cur *screening.TurnResponse) (*screening.TurnResponse, error) {
	switch action {
	case PromptAnswer:
		input, err := (&promptui.Prompt{Label: "Your answer"}).Run()
		if err != nil {
			return nil, err
		}
		return a.service.Turn(ctx, screening.TurnRequest{SessionID: cur.SessionID, UserInput: input})
	case PromptEditField:
		field, err := selectField()
		if err != nil || field == "" {
			return nil, err
		}
		value, err := (&promptui.Prompt{
			Label:   fmt.Sprintf("New %s", field),
			Default: cur.CollectedFields.Get(field),
		}).Run()
		if err != nil {
			return nil, err
		}
		return a.service.Edit(ctx, screening.EditRequest{SessionID: cur.SessionID, Field: string(field), Value: value})
	case PromptRestart:
		return a.service.Restart(ctx, cur.SessionID)
	case PromptShowDraft:
		return nil, printJSON(cur.CollectedFields)
	case PromptExit:
		return nil, errExit
	default:
		return nil, fmt.Errorf("invalid action: %s", action)
	}
}

// resume shows a stored session without applying a turn to it.
func resume(ctx context.Context, a *application, id string) (*screening.TurnResponse, error) {
	s, err := a.service.Session(ctx, id)
	if err != nil {
		return nil, err
	}

	res := &screening.TurnResponse{
		SessionID:       s.ID,
		Step:            s.Step.String(),
		CollectedFields: s.Fields,
		Language:        string(s.Language),
		RecordID:        s.RecordID,
	}
	for i := len(s.History) - 1; i >= 0; i-- {
		if s.History[i].Role == conversation.RoleAssistant {
			res.PromptText = s.History[i].Text
			break
		}
	}
	return res, nil
}

func selectField() (conversation.Field, error) {
	fields := conversation.AllFields()
	items := make([]string, 0, len(fields)+1)
	for _, f := range fields {
		items = append(items, string(f))
	}

	_, selected, err := (&promptui.Select{
		Label: "Choose a field and press ENTER",
		Items: append(items, PromptBack),
	}).Run()
	if err != nil || selected == PromptBack {
		return "", err
	}
	return conversation.ParseField(selected)
}

func show(res *screening.TurnResponse) {
	if res.Failure != nil {
		fmt.Printf("! %s\n", res.Failure.Message)
	}
	fmt.Printf("[%s] %s\n", res.Step, res.PromptText)
}
