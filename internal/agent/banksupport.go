package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/suPer8Hu/agent-platform/internal/ai"
)

// SupportOutput is the structured answer of the bank support agent.
type SupportOutput struct {
	SupportAdvice   string   `json:"support_advice" validate:"required"`
	BlockCard       bool     `json:"block_card"`
	RiskLevel       int      `json:"risk_level" validate:"gte=0,lte=10"`
	FollowUpActions []string `json:"follow_up_actions"`
}

const bankSupportInstructions = "You are a support agent at First National Bank. " +
	"Provide helpful and accurate information to customers. " +
	"Assess the risk level of their query and recommend appropriate actions. " +
	"Only set block_card when there is a security concern or the card is reported lost or stolen."

const bankSupportFormat = `Respond with a single JSON object and nothing else, using exactly these fields:
{"support_advice": string, "block_card": boolean, "risk_level": integer 0-10, "follow_up_actions": [string]}`

type BankSupportAgent struct {
	provider     ai.Provider
	providerName string
	model        string
	bank         BankStore
	schema       StructuredSchema[SupportOutput]
}

func NewBankSupportAgent(provider ai.Provider, providerName, model string, bank BankStore) *BankSupportAgent {
	if bank == nil {
		bank = NewSimulatedBank()
	}
	return &BankSupportAgent{
		provider:     provider,
		providerName: providerName,
		model:        model,
		bank:         bank,
		schema: StructuredSchema[SupportOutput]{
			Normalize: func(o *SupportOutput) {
				if o.FollowUpActions == nil {
					o.FollowUpActions = []string{}
				}
			},
		},
	}
}

func (a *BankSupportAgent) Kind() Kind { return BankSupport }

func (a *BankSupportAgent) Meta() map[string]string {
	return map[string]string{
		"agent_type": string(BankSupport),
		"provider":   a.providerName,
		"model":      a.model,
	}
}

func (a *BankSupportAgent) Schema() Schema { return a.schema }

func (a *BankSupportAgent) NewDeps(ctx context.Context, userID uuid.UUID) (Deps, error) {
	return Deps{
		UserID:     userID,
		CustomerID: CustomerIDFromUser(userID),
		Bank:       a.bank,
	}, nil
}

// systemPrompt adds the customer's name and an account snapshot.
func (a *BankSupportAgent) systemPrompt(ctx context.Context, deps Deps) (string, error) {
	bank := deps.Bank
	if bank == nil {
		bank = a.bank
	}
	name, err := bank.CustomerName(ctx, deps.CustomerID)
	if err != nil {
		return "", err
	}
	available, err := bank.Balance(ctx, deps.CustomerID, true)
	if err != nil {
		return "", err
	}
	settled, err := bank.Balance(ctx, deps.CustomerID, false)
	if err != nil {
		return "", err
	}
	txs, err := bank.RecentTransactions(ctx, deps.CustomerID, 5)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString(bankSupportInstructions)
	fmt.Fprintf(&b, "\n\nThe customer's name is %s.", name)
	fmt.Fprintf(&b, "\nBalance including pending transactions: %.2f. Settled balance: %.2f.", available, settled)
	b.WriteString("\nRecent transactions:")
	for _, tx := range txs {
		fmt.Fprintf(&b, "\n- %s %s %.2f", tx.Date, tx.Description, tx.Amount)
	}
	b.WriteString("\n\n")
	b.WriteString(bankSupportFormat)
	return b.String(), nil
}

func (a *BankSupportAgent) messages(ctx context.Context, in Input) ([]ai.Message, error) {
	system, err := a.systemPrompt(ctx, in.Deps)
	if err != nil {
		return nil, fmt.Errorf("agent: build system prompt: %w", err)
	}
	msgs := make([]ai.Message, 0, len(in.History)+2)
	msgs = append(msgs, ai.Message{Role: ai.RoleSystem, Content: system})
	msgs = append(msgs, in.History...)
	msgs = append(msgs, ai.Message{Role: ai.RoleUser, Content: in.Query})
	return msgs, nil
}

func (a *BankSupportAgent) Run(ctx context.Context, in Input) (*Result, error) {
	msgs, err := a.messages(ctx, in)
	if err != nil {
		return nil, err
	}
	raw, err := a.provider.Chat(ctx, msgs, ai.WithJSON())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	out, err := a.schema.ParseFinal(raw)
	if err != nil {
		return nil, err
	}
	if err := a.Finalize(ctx, in, out); err != nil {
		return nil, err
	}
	text, err := Encode(out)
	if err != nil {
		return nil, err
	}
	return &Result{Output: out, Text: text}, nil
}

// RunStream streams raw model text. Providers without streaming support
// deliver the whole answer as one chunk.
func (a *BankSupportAgent) RunStream(ctx context.Context, in Input) (<-chan string, <-chan error) {
	msgs, err := a.messages(ctx, in)
	if err != nil {
		return failedStream(err)
	}
	if sp, ok := a.provider.(ai.StreamProvider); ok {
		return sp.StreamChat(ctx, msgs, ai.WithJSON())
	}

	chunks := make(chan string, 1)
	errs := make(chan error, 1)
	go func() {
		defer close(chunks)
		defer close(errs)
		raw, err := a.provider.Chat(ctx, msgs, ai.WithJSON())
		if err != nil {
			errs <- err
			return
		}
		chunks <- raw
	}()
	return chunks, errs
}

func (a *BankSupportAgent) Finalize(ctx context.Context, in Input, output any) error {
	out, ok := output.(*SupportOutput)
	if !ok {
		return fmt.Errorf("%w: unexpected output %T", ErrOutputFormat, output)
	}
	if !out.BlockCard {
		return nil
	}
	bank := in.Deps.Bank
	if bank == nil {
		bank = a.bank
	}
	blocked, err := bank.BlockCard(ctx, in.Deps.CustomerID)
	if err != nil {
		return fmt.Errorf("agent: block card: %w", err)
	}
	if !blocked {
		return errors.New("agent: card could not be blocked")
	}
	return nil
}

func failedStream(err error) (<-chan string, <-chan error) {
	chunks := make(chan string)
	errs := make(chan error, 1)
	errs <- err
	close(chunks)
	close(errs)
	return chunks, errs
}
