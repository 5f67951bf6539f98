package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"
	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/mockpanel/mockpanel/internal/interview"
	"github.com/mockpanel/mockpanel/internal/logger"
)

const (
	PromptAnswer       = "Answer the question"
	PromptShowHints    = "Show hints"
	PromptQuit         = "Quit the interview"
	PromptModelAnswers = "Show model answers"
	PromptFullReport   = "Dump the full report as JSON"
	PromptExit         = "Exit"
)

var errExit = errors.New("exit requested")

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run an interactive mock interview in the terminal",
	Run: func(cmd *cobra.Command, _ []string) {
		run(cmd)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringP("company", "c", "", "target company name")
	runCmd.Flags().StringP("role", "r", "", "target role title")
	runCmd.Flags().IntP("questions", "q", 0, "number of planned questions")

	viper.BindPFlag("interview.company", runCmd.Flags().Lookup("company"))
	viper.BindPFlag("interview.role", runCmd.Flags().Lookup("role"))
	viper.BindPFlag("interview.question-count", runCmd.Flags().Lookup("questions"))
}

// run drives one full practice interview in the terminal.
func run(_ *cobra.Command) {
	ctx := context.Background()

	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}
	if config == nil || config.Interview == nil {
		logger.Fatal("interview section is required in the config")
	}
	if config.Interview.Company == "" || config.Interview.Role == "" {
		logger.Fatal("interview.company and interview.role are required")
	}

	logger.Info("starting the mockpanel", zap.String("version", version))

	brief, err := loadBrief(config.Interview.BriefFile)
	if err != nil {
		logger.Fatal("loading the research brief", zap.Error(err))
	}

	caps, model, err := newCapabilities(ctx, config.AI, logger)
	if err != nil {
		logger.Fatal("building ai capabilities", zap.Error(err))
	}

	questionCount := config.Interview.QuestionCount
	if questionCount <= 0 {
		questionCount = 5
	}
	mode := config.Interview.Mode
	if mode == "" {
		mode = "text"
	}

	session := interview.NewSession(
		uuid.NewString(),
		config.Interview.Company,
		config.Interview.Role,
		mode,
		model,
		questionCount,
		brief,
	)

	plan := interview.NewPlanner(caps, logger).BuildPlan(ctx, session)
	if len(plan) == 0 {
		logger.Fatal("no interview plan could be generated")
	}

	fmt.Printf("\nInterview for %s at %s: %d planned questions\n\n",
		session.Role, session.Company, len(plan))

	orchestrator := interview.NewOrchestrator(caps, interview.NewPanel(caps), session, logger)

	if err := interviewLoop(ctx, orchestrator); err != nil {
		if errors.Is(err, errExit) {
			logger.Info("exiting", zap.String("reason", "quit requested"))
			return
		}
		logger.Fatal("interview failed", zap.Error(err))
	}

	report, err := interview.NewEvaluator(caps, logger).Evaluate(ctx, session)
	if err != nil {
		logger.Fatal("evaluating the session", zap.Error(err))
	}

	printReport(report)

	if err := postSessionMenu(report); err != nil && !errors.Is(err, errExit) {
		logger.Fatal("exiting", zap.Error(err))
	}
}

// interviewLoop asks every question and collects typed answers until the
// orchestrator reports the interview over.
func interviewLoop(ctx context.Context, orchestrator *interview.Orchestrator) error {
	for {
		q := orchestrator.NextQuestion(ctx)
		if q == nil {
			return nil
		}

		fmt.Printf("[%s] %s\n", q.Persona, q.Question)

		hintUsed := false
		for {
			action := PromptAnswer
			if len(q.Hints.Bullets) > 0 && !hintUsed {
				menu := promptui.Select{
					Label: "What next?",
					Items: []string{PromptAnswer, PromptShowHints, PromptQuit},
				}
				var err error
				if _, action, err = menu.Run(); err != nil {
					return err
				}
			}

			if action == PromptQuit {
				return errExit
			}
			if action == PromptShowHints {
				hintUsed = true
				for _, bullet := range q.Hints.Bullets {
					fmt.Printf("  - %s\n", bullet)
				}
				continue
			}
			break
		}

		answerPrompt := promptui.Prompt{
			Label: "Your answer",
			Validate: func(s string) error {
				if strings.TrimSpace(s) == "" {
					return errors.New("answer must not be empty")
				}
				return nil
			},
		}
		answer, err := answerPrompt.Run()
		if err != nil {
			return err
		}

		result, err := orchestrator.ProcessAnswer(ctx, answer, hintUsed, nil)
		if err != nil {
			return err
		}

		if result.Analysis.Quality != interview.QualityNotScored {
			fmt.Printf("  -> %s\n\n", result.Analysis.Quality)
		} else {
			fmt.Println()
		}

		if result.InterviewOver {
			return nil
		}
	}
}

func printReport(report *interview.Report) {
	fmt.Printf("\n=== Interview report ===\n")
	fmt.Printf("Overall score: %d/100\n", report.OverallScore)

	for persona, score := range report.PersonaScores {
		fmt.Printf("  %s: %d\n", persona, score)
	}

	if len(report.Strengths) > 0 {
		fmt.Println("\nStrengths:")
		for _, s := range report.Strengths {
			fmt.Printf("  + %s\n", s)
		}
	}
	if len(report.Weaknesses) > 0 {
		fmt.Println("\nWeaknesses:")
		for _, w := range report.Weaknesses {
			fmt.Printf("  - %s\n", w)
		}
	}
	if len(report.ActionPlan) > 0 {
		fmt.Println("\nAction plan:")
		for i, step := range report.ActionPlan {
			fmt.Printf("  %d. %s\n", i+1, step)
		}
	}
	if !report.Consistency.Consistent {
		fmt.Printf("\nConsistency concerns: %d contradiction(s) detected\n",
			len(report.Consistency.Contradictions))
	}
}

func postSessionMenu(report *interview.Report) error {
	for {
		menu := promptui.Select{
			Label: "Anything else?",
			Items: []string{PromptModelAnswers, PromptFullReport, PromptExit},
		}
		_, action, err := menu.Run()
		if err != nil {
			return err
		}

		switch action {
		case PromptModelAnswers:
			if len(report.ModelAnswers) == 0 {
				fmt.Println("All answers were already strong, nothing to improve.")
				continue
			}
			for _, ma := range report.ModelAnswers {
				fmt.Printf("\nQ%d (%s): %s\n", ma.TurnNumber, ma.OriginalQuality, ma.Question)
				fmt.Printf("Model answer: %s\n", ma.ImprovedAnswer)
				for _, tip := range ma.Tips {
					fmt.Printf("  tip: %s\n", tip)
				}
			}
		case PromptFullReport:
			pretty, err := json.MarshalIndent(report, "", "  ")
			if err != nil {
				return fmt.Errorf("marshal report: %w", err)
			}
			fmt.Println(string(pretty))
		case PromptExit:
			return errExit
		default:
			return fmt.Errorf("invalid action: %s", action)
		}
	}
}
