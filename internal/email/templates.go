package email

import (
	"fmt"
	"html/template"
	"strings"
	"sync"
)

const (
	TemplatePaymentReceipt        = "payment_receipt"
	TemplateSubscriptionCancelled = "subscription_cancelled"
	TemplateSubscriptionExpiring  = "subscription_expiring"
)

var defaultTemplates = map[string]string{
	TemplatePaymentReceipt: `<h2>Thank you for subscribing to KontriVibe Premium!</h2>
<p>Hello {{.Name}},</p>
<p>Your payment was received and your <strong>{{.Plan}}</strong> plan is now active.</p>
<table>
  <tr><td>Amount</td><td>{{.Amount}} {{.Currency}}</td></tr>
  <tr><td>Transaction</td><td>{{.TransactionID}}</td></tr>
  <tr><td>Valid until</td><td>{{.ExpiryDate}}</td></tr>
</table>
<p>Enjoy unlimited music.</p>`,
	TemplateSubscriptionCancelled: `<p>Hello {{.Name}},</p>
<p>Your KontriVibe {{.Plan}} subscription has been cancelled. Premium access has ended.</p>`,
	TemplateSubscriptionExpiring: `<p>Hello {{.Name}},</p>
<p>Your KontriVibe {{.Plan}} subscription expires in {{.DaysRemaining}} day(s), on {{.ExpiryDate}}.</p>`,
}

// TemplateManager renders named html templates.
type TemplateManager struct {
	templates map[string]*template.Template
	mutex     sync.RWMutex
}

// NewTemplateManager returns a manager preloaded with the built-in templates.
func NewTemplateManager() *TemplateManager {
	tm := &TemplateManager{
		templates: make(map[string]*template.Template),
	}
	for name, body := range defaultTemplates {
		// Built-ins are static; a parse failure is a programming error.
		if err := tm.AddTemplate(name, body); err != nil {
			panic(err)
		}
	}
	return tm
}

func (tm *TemplateManager) Render(templateName string, data TemplateData) (string, error) {
	tm.mutex.RLock()
	tpl, exists := tm.templates[templateName]
	tm.mutex.RUnlock()

	if !exists {
		return "", fmt.Errorf("template not found: %s", templateName)
	}

	var buf strings.Builder
	if err := tpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute template: %w", err)
	}

	return buf.String(), nil
}

func (tm *TemplateManager) AddTemplate(name string, templateStr string) error {
	tpl, err := template.New(name).Parse(templateStr)
	if err != nil {
		return fmt.Errorf("failed to parse template: %w", err)
	}

	tm.mutex.Lock()
	tm.templates[name] = tpl
	tm.mutex.Unlock()

	return nil
}
