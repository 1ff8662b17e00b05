package service

import (
	"context"
	"testing"
	"time"

	"github.com/minhducn14/dutu-pulmo-be-sub001/internal/model"
)

// 恢复引擎测试：排班删除/请假撤销后，受影响日期的号源
// 恢复到当前排班集合应有的样子。

func restoreDate() time.Time {
	return time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC) // 周一
}

func seedSlot(mocks *testRepos, id, scheduleID string, version int, start, end time.Time, booked int, available bool) *model.TimeSlot {
	slot := &model.TimeSlot{
		SlotID:          id,
		DoctorID:        "doc-1",
		ScheduleID:      &scheduleID,
		ScheduleVersion: version,
		StartTime:       start,
		EndTime:         end,
		Capacity:        1,
		BookedCount:     booked,
		IsAvailable:     available,
	}
	mocks.timeSlot.slots[id] = slot
	mocks.timeSlot.order = append(mocks.timeSlot.order, id)
	return slot
}

func TestRestoreDays_ReenablesExactMatch(t *testing.T) {
	svc, mocks := setupTestSlotService(t)
	addRegular(mocks, "sch-1", 1, "08:00", "08:30", 30)

	// 请假撤销后遗留的已停用号源，起止与候选完全一致
	disabled := seedSlot(mocks, "slot-1", "sch-1", 1,
		time.Date(2026, 8, 31, 8, 0, 0, 0, time.UTC),
		time.Date(2026, 8, 31, 8, 30, 0, 0, time.UTC),
		0, false)

	if err := svc.RestoreDays(context.Background(), "doc-1", []time.Time{restoreDate()}); err != nil {
		t.Fatalf("RestoreDays 应成功: %v", err)
	}
	if !disabled.IsAvailable {
		t.Error("起止完全一致的未预约号源应原地重新启用")
	}
	if len(mocks.timeSlot.slots) != 1 {
		t.Errorf("不应新增号源，实际共 %d 个", len(mocks.timeSlot.slots))
	}
}

func TestRestoreDays_BookedSlotNeverRewritten(t *testing.T) {
	svc, mocks := setupTestSlotService(t)
	sch := addRegular(mocks, "sch-1", 1, "08:00", "08:30", 30)
	sch.Version = 3

	// 旧版本排班生成、已有预约的号源：版本不同也不得改写
	booked := seedSlot(mocks, "slot-1", "sch-1", 1,
		time.Date(2026, 8, 31, 8, 0, 0, 0, time.UTC),
		time.Date(2026, 8, 31, 8, 30, 0, 0, time.UTC),
		1, false)

	if err := svc.RestoreDays(context.Background(), "doc-1", []time.Time{restoreDate()}); err != nil {
		t.Fatalf("RestoreDays 应成功: %v", err)
	}
	if booked.IsAvailable {
		t.Error("已有预约的号源不应被恢复器改写")
	}
	if booked.ScheduleVersion != 1 {
		t.Errorf("已有预约的号源版本不应变化，实际 %d", booked.ScheduleVersion)
	}
}

func TestRestoreDays_PartialOverlapLeftAlone(t *testing.T) {
	svc, mocks := setupTestSlotService(t)
	addRegular(mocks, "sch-1", 1, "08:00", "09:00", 30)

	// 与候选 08:00-08:30 部分重叠但起止不一致：保持现状，也不插入新号源
	partial := seedSlot(mocks, "slot-1", "sch-1", 1,
		time.Date(2026, 8, 31, 8, 15, 0, 0, time.UTC),
		time.Date(2026, 8, 31, 8, 45, 0, 0, time.UTC),
		0, false)

	if err := svc.RestoreDays(context.Background(), "doc-1", []time.Time{restoreDate()}); err != nil {
		t.Fatalf("RestoreDays 应成功: %v", err)
	}
	if partial.IsAvailable {
		t.Error("部分重叠的号源应保持现状")
	}
	if len(mocks.timeSlot.slots) != 1 {
		t.Errorf("重叠时段不应插入新号源，实际共 %d 个", len(mocks.timeSlot.slots))
	}
}

func TestRestoreDays_InsertsMissingSlots(t *testing.T) {
	svc, mocks := setupTestSlotService(t)
	addRegular(mocks, "sch-1", 1, "08:00", "09:00", 30)

	if err := svc.RestoreDays(context.Background(), "doc-1", []time.Time{restoreDate()}); err != nil {
		t.Fatalf("RestoreDays 应成功: %v", err)
	}
	if len(mocks.timeSlot.slots) != 2 {
		t.Errorf("无任何重叠的时段应插入新号源，期望 2 个，实际 %d", len(mocks.timeSlot.slots))
	}
}

func TestRestoreDays_UpdatesScheduleRef(t *testing.T) {
	svc, mocks := setupTestSlotService(t)
	sch := addRegular(mocks, "sch-1", 1, "08:00", "08:30", 30)
	sch.Version = 2

	// 旧版本号源重新归属到当前排班版本
	stale := seedSlot(mocks, "slot-1", "sch-1", 1,
		time.Date(2026, 8, 31, 8, 0, 0, 0, time.UTC),
		time.Date(2026, 8, 31, 8, 30, 0, 0, time.UTC),
		0, true)

	if err := svc.RestoreDays(context.Background(), "doc-1", []time.Time{restoreDate()}); err != nil {
		t.Fatalf("RestoreDays 应成功: %v", err)
	}
	if stale.ScheduleVersion != 2 {
		t.Errorf("未预约号源应回写当前排班版本，实际 %d", stale.ScheduleVersion)
	}
	if !stale.IsAvailable {
		t.Error("号源应保持可预约")
	}
}

func TestRestoreDays_DisablesOrphanedSlots(t *testing.T) {
	svc, mocks := setupTestSlotService(t)
	// 当前无任何排班：该日所有未预约号源应停用

	orphan := seedSlot(mocks, "slot-1", "sch-deleted", 1,
		time.Date(2026, 8, 31, 8, 0, 0, 0, time.UTC),
		time.Date(2026, 8, 31, 8, 30, 0, 0, time.UTC),
		0, true)

	if err := svc.RestoreDays(context.Background(), "doc-1", []time.Time{restoreDate()}); err != nil {
		t.Fatalf("RestoreDays 应成功: %v", err)
	}
	if orphan.IsAvailable {
		t.Error("排班已删除的未预约号源应停用")
	}
}

func TestAffectedDates_CollectsSlotDatesAndSpecificDate(t *testing.T) {
	svc, mocks := setupTestSlotService(t)

	// 未来两天各有号源
	seedSlot(mocks, "slot-1", "sch-1", 1,
		time.Date(2026, 8, 31, 8, 0, 0, 0, time.UTC),
		time.Date(2026, 8, 31, 8, 30, 0, 0, time.UTC),
		0, true)
	seedSlot(mocks, "slot-2", "sch-1", 1,
		time.Date(2026, 9, 1, 8, 0, 0, 0, time.UTC),
		time.Date(2026, 9, 1, 8, 30, 0, 0, time.UTC),
		0, true)
	// 同日第二个号源不应产生重复日期
	seedSlot(mocks, "slot-3", "sch-1", 1,
		time.Date(2026, 9, 1, 9, 0, 0, 0, time.UTC),
		time.Date(2026, 9, 1, 9, 30, 0, 0, time.UTC),
		0, true)

	specific := time.Date(2026, 9, 5, 0, 0, 0, 0, time.UTC)
	sch := &model.DoctorSchedule{
		ScheduleID:   "sch-flex",
		DoctorID:     "doc-1",
		Kind:         model.ScheduleFlexible,
		SpecificDate: &specific,
	}

	dates, err := svc.AffectedDates(context.Background(), "doc-1", sch)
	if err != nil {
		t.Fatalf("AffectedDates 应成功: %v", err)
	}
	if len(dates) != 3 {
		t.Fatalf("期望 3 个日期（两天号源 + 弹性排班当日），实际 %d: %v", len(dates), dates)
	}
}
