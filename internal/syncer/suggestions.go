package syncer

import (
	"time"

	"github.com/dineops/customer-sync/internal/database/profiles"
	"github.com/dineops/customer-sync/internal/entities"
	"github.com/dineops/customer-sync/internal/rfm"
)

// segmentSuggestions are the per-segment campaign templates surfaced on
// the marketing dashboard.
var segmentSuggestions = map[string]string{
	rfm.SegmentKeyValue:         "提供专属会员礼遇与新品优先体验，维持高频高额消费习惯",
	rfm.SegmentKeyGrowth:        "推送满减券与套餐升级优惠，引导提升客单价",
	rfm.SegmentKeyRetention:     "发送限时回购提醒与高价值菜品推荐，防止流失",
	rfm.SegmentGeneralValue:     "通过节日活动与积分加倍唤醒近期消费",
	rfm.SegmentGeneralGrowth:    "推荐热销菜品与拼单优惠，培养消费频次",
	rfm.SegmentGeneralRetention: "定向发放小额代金券，维持消费活跃度",
	rfm.SegmentLowValue:         "发送新客召回券与低门槛满减活动，尝试二次激活",
}

const defaultSuggestion = "结合近期消费数据制定个性化营销活动"

// suggestionRows turns segment rollups into marketing-suggestion records
// for this run.
func suggestionRows(stats []profiles.SegmentStat, now time.Time) []entities.MarketingSuggestion {
	rows := make([]entities.MarketingSuggestion, 0, len(stats))
	for _, s := range stats {
		text, ok := segmentSuggestions[s.Segment]
		if !ok {
			text = defaultSuggestion
		}
		rows = append(rows, entities.MarketingSuggestion{
			Segment:       s.Segment,
			CustomerCount: s.CustomerCount,
			AvgSpend:      s.AvgSpend,
			Suggestion:    text,
			GeneratedAt:   now,
		})
	}
	return rows
}
