package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/answercart/answercart/internal/core/domain"
)

var (
	askStream   bool
	askPageType string
	askProduct  string
	askLocale   string
	askPlan     string
)

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Answer a shopper question from the knowledge base",
	Long: `Answers a question using indexed store content. Context flags mimic
the storefront situation the question was asked in, which influences
which content the reranker prefers.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().BoolVar(&askStream, "stream", false, "stream the answer as it is generated")
	askCmd.Flags().StringVar(&askPageType, "page-type", "", "storefront page type (product, cart, checkout, ...)")
	askCmd.Flags().StringVar(&askProduct, "product", "", "product ID the shopper is viewing")
	askCmd.Flags().StringVar(&askLocale, "locale", "", "restrict retrieval to a language (e.g. en)")
	askCmd.Flags().StringVar(&askPlan, "plan", "", "plan tier for generation limits")
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	a, err := buildApp()
	if err != nil {
		return err
	}
	defer a.Close()

	question := strings.Join(args, " ")
	qc := domain.QueryContext{
		PageType:  askPageType,
		ProductID: askProduct,
		Locale:    askLocale,
	}
	if askPlan != "" {
		qc.Hints = map[string]string{"plan": askPlan}
	}

	ctx := cmd.Context()

	if askStream {
		answer, deltas, err := a.answerer.QueryStream(ctx, question, qc)
		if err != nil {
			return fmt.Errorf("answer failed: %w", err)
		}
		for delta := range deltas {
			if delta.Err != nil {
				return fmt.Errorf("stream failed: %w", delta.Err)
			}
			cmd.Print(delta.Text)
			if delta.Done {
				break
			}
		}
		cmd.Println()
		printAnswerMeta(cmd, answer)
		return nil
	}

	answer, err := a.answerer.Query(ctx, question, qc)
	if err != nil {
		return fmt.Errorf("answer failed: %w", err)
	}
	cmd.Println(answer.Text)
	printAnswerMeta(cmd, answer)
	return nil
}

func printAnswerMeta(cmd *cobra.Command, answer *domain.Answer) {
	if !verbose {
		return
	}
	cmd.Println()
	cmd.Printf("request:  %s\n", answer.RequestID)
	if answer.Provider != "" {
		cmd.Printf("provider: %s\n", answer.Provider)
	}
	if answer.Blocked {
		cmd.Printf("blocked:  %s\n", answer.BlockReason)
	}
	if answer.Degraded {
		cmd.Println("degraded: yes")
	}
	if len(answer.UsedChunkIDs) > 0 {
		cmd.Printf("chunks:   %s\n", strings.Join(answer.UsedChunkIDs, ", "))
	}
}
