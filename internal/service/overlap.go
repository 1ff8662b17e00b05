package service

import (
	"fmt"
	"time"

	"github.com/minhducn14/dutu-pulmo-be-sub001/internal/model"
)

// ── 墙钟时间辅助 ──

// parseClock 解析 "HH:MM" 为当日分钟数
func parseClock(s string) (int, error) {
	var h, m int
	if _, err := fmt.Sscanf(s, "%d:%d", &h, &m); err != nil {
		return 0, fmt.Errorf("时间格式无效 %q: %w", s, err)
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, fmt.Errorf("时间格式无效 %q", s)
	}
	return h*60 + m, nil
}

// mustClock 解析已校验过的 "HH:MM"，格式错误时返回 0
func mustClock(s string) int {
	m, err := parseClock(s)
	if err != nil {
		return 0
	}
	return m
}

// clockOverlaps 半开区间 [aStart, aEnd) 与 [bStart, bEnd) 是否重叠
func clockOverlaps(aStart, aEnd, bStart, bEnd int) bool {
	return aStart < bEnd && bStart < aEnd
}

// sameDate 两个日期是否为同一天（忽略时分秒）
func sameDate(a, b *time.Time) bool {
	if a == nil || b == nil {
		return false
	}
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// dateWindowsIntersect 两个生效区间是否相交，nil 边界视为无穷
func dateWindowsIntersect(aFrom, aUntil, bFrom, bUntil *time.Time) bool {
	if aUntil != nil && bFrom != nil && aUntil.Before(*bFrom) {
		return false
	}
	if bUntil != nil && aFrom != nil && bUntil.Before(*aFrom) {
		return false
	}
	return true
}

// ── 排班冲突检测 ──
//
// 只有同优先级的排班之间才构成冲突：固定排班之间按星期 + 时间 +
// 生效区间判定，弹性排班/请假之间按具体日期 + 时间判定。
// 不同优先级（如弹性覆盖固定）是正常的覆盖关系，不是冲突。

// schedulesConflict 判断两条排班是否冲突
func schedulesConflict(a, b *model.DoctorSchedule) bool {
	if a.Kind.Priority() != b.Kind.Priority() {
		return false
	}

	aStart, aEnd := mustClock(a.StartTime), mustClock(a.EndTime)
	bStart, bEnd := mustClock(b.StartTime), mustClock(b.EndTime)
	if !clockOverlaps(aStart, aEnd, bStart, bEnd) {
		return false
	}

	if a.Kind == model.ScheduleRegular {
		if a.DayOfWeek != b.DayOfWeek {
			return false
		}
		return dateWindowsIntersect(a.EffectiveFrom, a.EffectiveUntil, b.EffectiveFrom, b.EffectiveUntil)
	}

	// 弹性排班与请假按具体日期精确命中
	return sameDate(a.SpecificDate, b.SpecificDate)
}

// findConflict 在已有排班中查找与候选排班冲突的第一条，
// excludeID 用于更新场景下排除自身
func findConflict(candidate *model.DoctorSchedule, existing []model.DoctorSchedule, excludeID string) *model.DoctorSchedule {
	for i := range existing {
		if existing[i].ScheduleID == excludeID {
			continue
		}
		if existing[i].DeletedAt.Valid {
			continue
		}
		if schedulesConflict(candidate, &existing[i]) {
			return &existing[i]
		}
	}
	return nil
}
