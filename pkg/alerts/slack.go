package alerts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/compras-gov/dispensa-guard/pkg/model"
)

// SlackNotifier sends notifications to a Slack webhook.
type SlackNotifier struct {
	webhookURL string
	channel    string
	client     *http.Client
}

// NewSlackNotifier creates a Slack webhook notifier.
func NewSlackNotifier(webhookURL, channel string) *SlackNotifier {
	return &SlackNotifier{
		webhookURL: webhookURL,
		channel:    channel,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (s *SlackNotifier) Name() string { return "slack" }

func (s *SlackNotifier) Send(ctx context.Context, n Notificacao) error {
	color := "#36a64f" // green
	switch n.Tipo {
	case model.AlertaWarning:
		color = "#ff9900" // orange
	case model.AlertaError:
		color = "#ff0000" // red
	case model.AlertaCritical:
		color = "#cc0000" // dark red
	}

	referencia := fmt.Sprintf("%d", n.ReferenciaAno)
	if n.ReferenciaMes > 0 {
		referencia = fmt.Sprintf("%02d/%d", n.ReferenciaMes, n.ReferenciaAno)
	}

	payload := slackPayload{
		Channel: s.channel,
		Attachments: []slackAttachment{
			{
				Color: color,
				Title: fmt.Sprintf("Dispensa Guard: limite %s", string(n.Tipo)),
				Fields: []slackField{
					{Title: "Categoria", Value: n.CategoriaNome, Short: true},
					{Title: "Periodo", Value: string(n.Periodo), Short: true},
					{Title: "Referencia", Value: referencia, Short: true},
					{Title: "Uso", Value: fmt.Sprintf("%.1f%%", n.PercentualUsado), Short: true},
					{Title: "Valor usado", Value: fmt.Sprintf("R$ %.2f", n.ValorUsado), Short: true},
					{Title: "Limite", Value: fmt.Sprintf("R$ %.2f", n.LimiteAplicavel), Short: true},
				},
				Footer: "Dispensa Guard",
				Ts:     time.Now().Unix(),
			},
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal slack payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create slack request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("send slack notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("slack returned status %d", resp.StatusCode)
	}
	return nil
}

type slackPayload struct {
	Channel     string            `json:"channel,omitempty"`
	Attachments []slackAttachment `json:"attachments"`
}

type slackAttachment struct {
	Color  string       `json:"color"`
	Title  string       `json:"title"`
	Fields []slackField `json:"fields"`
	Footer string       `json:"footer"`
	Ts     int64        `json:"ts"`
}

type slackField struct {
	Title string `json:"title"`
	Value string `json:"value"`
	Short bool   `json:"short"`
}
