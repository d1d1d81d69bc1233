package pipeline

import "context"

// runMonitoring executes stage 7: set up dashboards, alert rules, and
// the review schedule for the set that was just deployed.
func (p *Pipeline) runMonitoring(ctx context.Context, state *RunState) (map[string]any, error) {
	report, err := p.monitor.Setup(ctx, deployableRecords(state.Records))
	if err != nil {
		return nil, err
	}

	summary := map[string]any{
		"enabled":     report.Enabled,
		"alerts_sent": report.AlertsSent,
	}
	if report.Enabled {
		summary["dashboards"] = len(report.Dashboards)
		summary["alert_rules"] = len(report.AlertRules)
		summary["review_schedule"] = report.ReviewSchedule
	}
	return summary, nil
}
