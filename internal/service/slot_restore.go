package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/minhducn14/dutu-pulmo-be-sub001/internal/model"
	"github.com/minhducn14/dutu-pulmo-be-sub001/internal/repository"
)

// ── 号源恢复引擎 ──
//
// 排班被删除、停用或请假被撤销后，受影响日期的号源需要恢复到
// 当前排班集合应有的样子：
//   - 重新按「赢者通吃」算出该日应出的号
//   - 起止完全一致且无人预约的已停用号源原地重新启用
//   - 没有任何重叠的时段插入新号源
//   - 已有预约的号源绝不改写
//   - 不再属于胜出排班且无人预约的号源停用

// RestoreDays 对给定日期逐日恢复号源，每日一个事务
func (s *slotService) RestoreDays(ctx context.Context, doctorID string, dates []time.Time) error {
	for _, date := range dates {
		day := date
		err := s.repo.WithTx(ctx, func(txRepo *repository.Repository) error {
			return s.restoreDay(ctx, txRepo, doctorID, day)
		})
		if err != nil {
			s.logger.Error("恢复号源失败",
				zap.String("doctor_id", doctorID),
				zap.Time("date", day),
				zap.Error(err))
			return err
		}
	}
	return nil
}

func (s *slotService) restoreDay(ctx context.Context, txRepo *repository.Repository, doctorID string, date time.Time) error {
	winners, timeoffs, err := s.dayWinners(ctx, txRepo, doctorID, date)
	if err != nil {
		return err
	}

	dayStart, dayEnd := s.dayBounds(date)
	existing, err := txRepo.TimeSlot.ListByDoctorAndRange(ctx, doctorID, dayStart, dayEnd, false)
	if err != nil {
		return err
	}

	var toCreate []model.TimeSlot
	var keepIDs []string
	restored := 0

	for i := range winners {
		for _, cand := range s.buildCandidates(&winners[i], date, timeoffs) {
			if match := exactMatch(cand.StartTime, cand.EndTime, existing); match != nil {
				keepIDs = append(keepIDs, match.SlotID)
				if match.BookedCount > 0 {
					continue // 已有预约，绝不改写
				}
				if !match.IsAvailable || !sameScheduleRef(match, &cand) {
					match.IsAvailable = true
					match.ScheduleID = cand.ScheduleID
					match.ScheduleVersion = cand.ScheduleVersion
					match.Capacity = cand.Capacity
					match.AllowedTypes = cand.AllowedTypes
					if err := txRepo.TimeSlot.Update(ctx, match); err != nil {
						return err
					}
					restored++
				}
				continue
			}
			if overlapsAny(cand.StartTime, cand.EndTime, existing) {
				continue // 部分重叠，保持现状
			}
			toCreate = append(toCreate, cand)
		}
	}

	// 先停用再入库，新建的号源不受停用影响
	disabled, err := txRepo.TimeSlot.DisableUnbookedExcept(ctx, doctorID, dayStart, dayEnd, keepIDs)
	if err != nil {
		return err
	}

	if err := txRepo.TimeSlot.BatchCreate(ctx, toCreate); err != nil {
		return err
	}

	s.logger.Info("号源恢复完成",
		zap.String("doctor_id", doctorID),
		zap.Time("date", date),
		zap.Int("restored", restored),
		zap.Int("created", len(toCreate)),
		zap.Int64("disabled", disabled))
	return nil
}

// AffectedDates 排班变更后需要恢复的日期：已生成的未来号源所在
// 日期，加上弹性排班/请假自身的具体日期
func (s *slotService) AffectedDates(ctx context.Context, doctorID string, sch *model.DoctorSchedule) ([]time.Time, error) {
	from, _ := s.dayBounds(s.now().In(s.loc))
	to := from.AddDate(0, 0, s.cfg.Booking.MaxGenerateDays)

	slots, err := s.repo.TimeSlot.ListByDoctorAndRange(ctx, doctorID, from, to, false)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var dates []time.Time
	add := func(t time.Time) {
		day, _ := s.dayBounds(t.In(s.loc))
		key := day.Format("2006-01-02")
		if !seen[key] {
			seen[key] = true
			dates = append(dates, day)
		}
	}

	for i := range slots {
		add(slots[i].StartTime)
	}
	if sch != nil && sch.SpecificDate != nil && !sch.SpecificDate.Before(from) {
		add(*sch.SpecificDate)
	}
	return dates, nil
}

// ── 内部辅助方法 ──

func exactMatch(start, end time.Time, slots []model.TimeSlot) *model.TimeSlot {
	for i := range slots {
		if slots[i].StartTime.Equal(start) && slots[i].EndTime.Equal(end) {
			return &slots[i]
		}
	}
	return nil
}

func sameScheduleRef(slot, cand *model.TimeSlot) bool {
	if slot.ScheduleID == nil || cand.ScheduleID == nil {
		return slot.ScheduleID == cand.ScheduleID
	}
	return *slot.ScheduleID == *cand.ScheduleID && slot.ScheduleVersion == cand.ScheduleVersion
}
