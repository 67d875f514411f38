package pipeline

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/site-insight/internal/model"
)

// lookupRankings checks where the target ranks for its top key topics. The
// stage is a no-op without a SERP client and never fails the target; a topic
// the site doesn't rank for in the first page of results is simply omitted.
func (p *Pipeline) lookupRankings(ctx context.Context, targetURL string, topics []string, meter *usageMeter) []model.KeywordRank {
	if p.serp == nil || len(topics) == 0 {
		return nil
	}
	if max := p.cfg.SerpTopics; max > 0 && len(topics) > max {
		topics = topics[:max]
	}

	host := domainOf(targetURL)
	var rankings []model.KeywordRank
	for _, topic := range topics {
		resp, err := p.serp.Search(ctx, topic)
		if err != nil {
			zap.L().Debug("pipeline: serp lookup failed",
				zap.String("url", targetURL),
				zap.String("topic", topic),
				zap.Error(err),
			)
			continue
		}
		meter.addSerp(p.cfg.SerpQueryCost)

		for _, result := range resp.OrganicResults {
			if !matchesHost(result.Link, host) {
				continue
			}
			rankings = append(rankings, model.KeywordRank{
				Keyword:  topic,
				Position: result.Position,
				URL:      result.Link,
			})
			break
		}
	}
	return rankings
}

func matchesHost(link, host string) bool {
	if host == "" {
		return false
	}
	linkHost := domainOf(link)
	return linkHost == host || strings.HasSuffix(linkHost, "."+host)
}
