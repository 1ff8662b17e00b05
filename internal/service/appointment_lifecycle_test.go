package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/minhducn14/dutu-pulmo-be-sub001/internal/dto"
	"github.com/minhducn14/dutu-pulmo-be-sub001/internal/model"
)

// seedAppointment 预置一条与 slot-1 绑定的预约
func seedAppointment(mocks *testRepos, id string, status model.AppointmentStatus, apptType model.AppointmentType, scheduledAt time.Time) *model.Appointment {
	slotID := "slot-1"
	appt := &model.Appointment{
		AppointmentID:     id,
		AppointmentNumber: "APT-TEST-" + id,
		PatientID:         "pat-1",
		DoctorID:          "doc-1",
		SlotID:            &slotID,
		ScheduledAt:       scheduledAt,
		DurationMinutes:   30,
		Status:            status,
		AppointmentType:   apptType,
	}
	mocks.appointment.appts[id] = appt
	return appt
}

// ── ConfirmPayment 测试 ──

func TestAppointmentService_ConfirmPayment_Success(t *testing.T) {
	svc, mocks, _, _ := setupTestAppointmentService(t)
	bookableSlot(mocks, "slot-1", 2, 1)
	appt := seedAppointment(mocks, "appt-1", model.StatusPendingPayment, model.TypeInClinic,
		time.Date(2026, 8, 25, 9, 0, 0, 0, time.UTC))
	appt.FeeAmount = 15000

	resp, err := svc.ConfirmPayment(context.Background(), "appt-1", "pat-1", &dto.ConfirmPaymentRequest{
		PaymentID: "pay-001",
	})
	if err != nil {
		t.Fatalf("ConfirmPayment 应成功: %v", err)
	}
	if resp.Status != string(model.StatusConfirmed) {
		t.Errorf("支付后应确认，实际 %s", resp.Status)
	}
	if resp.PaidAmount != 15000 {
		t.Errorf("已付金额应等于应付金额，实际 %d", resp.PaidAmount)
	}
	if appt.PaymentID == nil || *appt.PaymentID != "pay-001" {
		t.Errorf("支付流水号未保存: %v", appt.PaymentID)
	}
}

func TestAppointmentService_ConfirmPayment_VideoCreatesRoom(t *testing.T) {
	svc, mocks, rooms, _ := setupTestAppointmentService(t)
	bookableSlot(mocks, "slot-1", 2, 1)
	appt := seedAppointment(mocks, "appt-1", model.StatusPendingPayment, model.TypeVideo,
		time.Date(2026, 8, 25, 9, 0, 0, 0, time.UTC))
	appt.FeeAmount = 20000

	if _, err := svc.ConfirmPayment(context.Background(), "appt-1", "pat-1", &dto.ConfirmPaymentRequest{
		PaymentID: "pay-002",
	}); err != nil {
		t.Fatalf("ConfirmPayment 应成功: %v", err)
	}
	if len(rooms.rooms) != 1 {
		t.Errorf("视频号支付确认后应预建房间，实际 %d 间", len(rooms.rooms))
	}
	if appt.MeetingURL == "" {
		t.Error("房间地址应回写到预约")
	}
}

func TestAppointmentService_ConfirmPayment_RoomFailureAborts(t *testing.T) {
	svc, mocks, rooms, _ := setupTestAppointmentService(t)
	bookableSlot(mocks, "slot-1", 2, 1)
	appt := seedAppointment(mocks, "appt-1", model.StatusPendingPayment, model.TypeVideo,
		time.Date(2026, 8, 25, 9, 0, 0, 0, time.UTC))
	rooms.createErr = errors.New("视频服务超时")

	_, err := svc.ConfirmPayment(context.Background(), "appt-1", "pat-1", &dto.ConfirmPaymentRequest{
		PaymentID: "pay-005",
	})
	if !errors.Is(err, ErrMeetingRoomFailed) {
		t.Fatalf("期望 ErrMeetingRoomFailed，实际: %v", err)
	}
	// 房间建不出来，支付确认整体失败，预约保持待支付
	if appt.Status != model.StatusPendingPayment {
		t.Errorf("支付确认失败预约不应转移，实际 %s", appt.Status)
	}
	if appt.PaymentID != nil {
		t.Errorf("失败的确认不应记录支付流水: %v", *appt.PaymentID)
	}
}

func TestAppointmentService_ConfirmPayment_NotPendingPayment(t *testing.T) {
	svc, mocks, _, _ := setupTestAppointmentService(t)
	bookableSlot(mocks, "slot-1", 2, 1)
	seedAppointment(mocks, "appt-1", model.StatusConfirmed, model.TypeInClinic,
		time.Date(2026, 8, 25, 9, 0, 0, 0, time.UTC))

	_, err := svc.ConfirmPayment(context.Background(), "appt-1", "pat-1", &dto.ConfirmPaymentRequest{
		PaymentID: "pay-003",
	})
	if !errors.Is(err, ErrNotPendingPayment) {
		t.Errorf("期望 ErrNotPendingPayment，实际: %v", err)
	}
}

func TestAppointmentService_ConfirmPayment_WrongPatient(t *testing.T) {
	svc, mocks, _, _ := setupTestAppointmentService(t)
	bookableSlot(mocks, "slot-1", 2, 1)
	seedAppointment(mocks, "appt-1", model.StatusPendingPayment, model.TypeInClinic,
		time.Date(2026, 8, 25, 9, 0, 0, 0, time.UTC))

	_, err := svc.ConfirmPayment(context.Background(), "appt-1", "pat-other", &dto.ConfirmPaymentRequest{
		PaymentID: "pay-004",
	})
	if !errors.Is(err, ErrNotParticipant) {
		t.Errorf("期望 ErrNotParticipant，实际: %v", err)
	}
}

// ── CheckIn 测试 ──

func TestAppointmentService_CheckIn_InClinicAssignsQueueNumber(t *testing.T) {
	svc, mocks, _, _ := setupTestAppointmentService(t)
	bookableSlot(mocks, "slot-1", 5, 2)
	// now = 08-24 10:00，预约 10:15，落在 [-30min, +15min] 窗口内
	seedAppointment(mocks, "appt-1", model.StatusConfirmed, model.TypeInClinic,
		time.Date(2026, 8, 24, 10, 15, 0, 0, time.UTC))

	resp, err := svc.CheckIn(context.Background(), "appt-1", "pat-1")
	if err != nil {
		t.Fatalf("CheckIn 应成功: %v", err)
	}
	if resp.QueueNumber == nil || *resp.QueueNumber != 1 {
		t.Errorf("首位签到应领取 1 号，实际 %v", resp.QueueNumber)
	}
	if resp.Appointment.Status != string(model.StatusCheckedIn) {
		t.Errorf("签到后状态应为 CHECKED_IN，实际 %s", resp.Appointment.Status)
	}
}

func TestAppointmentService_CheckIn_QueueNumberIncrements(t *testing.T) {
	svc, mocks, _, _ := setupTestAppointmentService(t)
	bookableSlot(mocks, "slot-1", 5, 2)
	first := seedAppointment(mocks, "appt-1", model.StatusCheckedIn, model.TypeInClinic,
		time.Date(2026, 8, 24, 9, 45, 0, 0, time.UTC))
	q := 3
	first.QueueNumber = &q
	seedAppointment(mocks, "appt-2", model.StatusConfirmed, model.TypeInClinic,
		time.Date(2026, 8, 24, 10, 15, 0, 0, time.UTC))

	resp, err := svc.CheckIn(context.Background(), "appt-2", "pat-1")
	if err != nil {
		t.Fatalf("CheckIn 应成功: %v", err)
	}
	if resp.QueueNumber == nil || *resp.QueueNumber != 4 {
		t.Errorf("排队序号应为当日最大值 + 1 = 4，实际 %v", resp.QueueNumber)
	}
}

func TestAppointmentService_CheckIn_VideoNoQueueNumber(t *testing.T) {
	svc, mocks, _, _ := setupTestAppointmentService(t)
	bookableSlot(mocks, "slot-1", 5, 1)
	// 视频窗口 [-60min, +30min]：预约 10:50，now 10:00 在窗口内
	seedAppointment(mocks, "appt-1", model.StatusConfirmed, model.TypeVideo,
		time.Date(2026, 8, 24, 10, 50, 0, 0, time.UTC))

	resp, err := svc.CheckIn(context.Background(), "appt-1", "pat-1")
	if err != nil {
		t.Fatalf("CheckIn 应成功: %v", err)
	}
	if resp.QueueNumber != nil {
		t.Errorf("视频问诊无需排队序号，实际 %v", *resp.QueueNumber)
	}
}

func TestAppointmentService_CheckIn_OutsideWindow(t *testing.T) {
	svc, mocks, _, _ := setupTestAppointmentService(t)
	bookableSlot(mocks, "slot-1", 5, 1)

	cases := []struct {
		name        string
		apptType    model.AppointmentType
		scheduledAt time.Time
	}{
		// 到院窗口 [-30min, +15min]
		{"到院太早", model.TypeInClinic, time.Date(2026, 8, 24, 10, 31, 0, 0, time.UTC)},
		{"到院太晚", model.TypeInClinic, time.Date(2026, 8, 24, 9, 44, 0, 0, time.UTC)},
		// 视频窗口 [-60min, +30min]
		{"视频太早", model.TypeVideo, time.Date(2026, 8, 24, 11, 1, 0, 0, time.UTC)},
		{"视频太晚", model.TypeVideo, time.Date(2026, 8, 24, 9, 29, 0, 0, time.UTC)},
	}
	for _, c := range cases {
		seedAppointment(mocks, "appt-"+c.name, model.StatusConfirmed, c.apptType, c.scheduledAt)
		_, err := svc.CheckIn(context.Background(), "appt-"+c.name, "pat-1")
		if !errors.Is(err, ErrNotCheckInWindow) {
			t.Errorf("%s: 期望 ErrNotCheckInWindow，实际: %v", c.name, err)
		}
	}
}

func TestAppointmentService_CheckIn_WrongPatient(t *testing.T) {
	svc, mocks, _, _ := setupTestAppointmentService(t)
	bookableSlot(mocks, "slot-1", 5, 1)
	seedAppointment(mocks, "appt-1", model.StatusConfirmed, model.TypeInClinic,
		time.Date(2026, 8, 24, 10, 15, 0, 0, time.UTC))

	_, err := svc.CheckIn(context.Background(), "appt-1", "pat-other")
	if !errors.Is(err, ErrNotParticipant) {
		t.Errorf("期望 ErrNotParticipant，实际: %v", err)
	}
}

func TestAppointmentService_CheckIn_InvalidStatus(t *testing.T) {
	svc, mocks, _, _ := setupTestAppointmentService(t)
	bookableSlot(mocks, "slot-1", 5, 1)
	// PENDING_PAYMENT 不允许签到
	seedAppointment(mocks, "appt-1", model.StatusPendingPayment, model.TypeInClinic,
		time.Date(2026, 8, 24, 10, 15, 0, 0, time.UTC))

	_, err := svc.CheckIn(context.Background(), "appt-1", "pat-1")
	if !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("期望 ErrInvalidTransition，实际: %v", err)
	}
}

// ── CheckInByNumber 测试 ──

func TestAppointmentService_CheckInByNumber_Success(t *testing.T) {
	svc, mocks, _, _ := setupTestAppointmentService(t)
	bookableSlot(mocks, "slot-1", 5, 1)
	seedAppointment(mocks, "appt-1", model.StatusConfirmed, model.TypeInClinic,
		time.Date(2026, 8, 24, 10, 15, 0, 0, time.UTC))

	resp, err := svc.CheckInByNumber(context.Background(), "APT-TEST-appt-1", "pat-1")
	if err != nil {
		t.Fatalf("CheckInByNumber 应成功: %v", err)
	}
	if resp.Appointment.Status != string(model.StatusCheckedIn) {
		t.Errorf("签到后状态应为 CHECKED_IN，实际 %s", resp.Appointment.Status)
	}
	if resp.QueueNumber == nil || *resp.QueueNumber != 1 {
		t.Errorf("应领取排队号 1，实际 %v", resp.QueueNumber)
	}
}

func TestAppointmentService_CheckInByNumber_UnknownNumber(t *testing.T) {
	svc, _, _, _ := setupTestAppointmentService(t)

	_, err := svc.CheckInByNumber(context.Background(), "APT-NOPE", "pat-1")
	if !errors.Is(err, ErrAppointmentNotFound) {
		t.Errorf("期望 ErrAppointmentNotFound，实际: %v", err)
	}
}

// ── UpdateStatus 测试 ──

func TestAppointmentService_UpdateStatus_ValidTransition(t *testing.T) {
	svc, mocks, _, _ := setupTestAppointmentService(t)
	bookableSlot(mocks, "slot-1", 5, 1)
	appt := seedAppointment(mocks, "appt-1", model.StatusCheckedIn, model.TypeInClinic,
		time.Date(2026, 8, 24, 10, 15, 0, 0, time.UTC))

	resp, err := svc.UpdateStatus(context.Background(), "appt-1", "doc-1", &dto.UpdateStatusRequest{
		Status: string(model.StatusInProgress),
		Notes:  "开始接诊",
	})
	if err != nil {
		t.Fatalf("UpdateStatus 应成功: %v", err)
	}
	if resp.Status != string(model.StatusInProgress) {
		t.Errorf("期望 IN_PROGRESS，实际 %s", resp.Status)
	}
	if appt.StartedAt == nil {
		t.Error("进入 IN_PROGRESS 应记录开始时间")
	}
	if appt.DoctorNotes != "开始接诊" {
		t.Errorf("医生备注未保存: %q", appt.DoctorNotes)
	}
}

func TestAppointmentService_UpdateStatus_InvalidTransition(t *testing.T) {
	svc, mocks, _, _ := setupTestAppointmentService(t)
	bookableSlot(mocks, "slot-1", 5, 1)
	seedAppointment(mocks, "appt-1", model.StatusCompleted, model.TypeInClinic,
		time.Date(2026, 8, 24, 10, 15, 0, 0, time.UTC))

	_, err := svc.UpdateStatus(context.Background(), "appt-1", "doc-1", &dto.UpdateStatusRequest{
		Status: string(model.StatusInProgress),
	})
	if !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("终态不应允许转移，期望 ErrInvalidTransition，实际: %v", err)
	}
}

func TestAppointmentService_UpdateStatus_CancelReleasesSeat(t *testing.T) {
	svc, mocks, _, _ := setupTestAppointmentService(t)
	slot := bookableSlot(mocks, "slot-1", 5, 3)
	seedAppointment(mocks, "appt-1", model.StatusConfirmed, model.TypeInClinic,
		time.Date(2026, 8, 24, 10, 15, 0, 0, time.UTC))

	if _, err := svc.UpdateStatus(context.Background(), "appt-1", "doc-1", &dto.UpdateStatusRequest{
		Status: string(model.StatusCancelled),
	}); err != nil {
		t.Fatalf("UpdateStatus 应成功: %v", err)
	}
	if slot.BookedCount != 2 {
		t.Errorf("取消应归还名额，期望 2，实际 %d", slot.BookedCount)
	}
	if mocks.appointment.appts["appt-1"].CancelledBy != "DOCTOR" {
		t.Errorf("医生端取消应记录 DOCTOR，实际 %s", mocks.appointment.appts["appt-1"].CancelledBy)
	}
}

func TestAppointmentService_UpdateStatus_ConfirmVideoCreatesRoom(t *testing.T) {
	svc, mocks, rooms, _ := setupTestAppointmentService(t)
	bookableSlot(mocks, "slot-1", 5, 1)
	appt := seedAppointment(mocks, "appt-1", model.StatusPendingPayment, model.TypeVideo,
		time.Date(2026, 8, 25, 9, 0, 0, 0, time.UTC))

	resp, err := svc.UpdateStatus(context.Background(), "appt-1", "doc-1", &dto.UpdateStatusRequest{
		Status: string(model.StatusConfirmed),
	})
	if err != nil {
		t.Fatalf("UpdateStatus 应成功: %v", err)
	}
	if resp.Status != string(model.StatusConfirmed) {
		t.Errorf("期望 CONFIRMED，实际 %s", resp.Status)
	}
	if len(rooms.rooms) != 1 {
		t.Errorf("视频号转入已确认应建好房间，实际 %d 间", len(rooms.rooms))
	}
	if appt.MeetingURL == "" {
		t.Error("房间地址应回写到预约")
	}
}

func TestAppointmentService_UpdateStatus_ConfirmVideoRoomFailureAborts(t *testing.T) {
	svc, mocks, rooms, _ := setupTestAppointmentService(t)
	bookableSlot(mocks, "slot-1", 5, 1)
	appt := seedAppointment(mocks, "appt-1", model.StatusPendingPayment, model.TypeVideo,
		time.Date(2026, 8, 25, 9, 0, 0, 0, time.UTC))
	rooms.createErr = errors.New("视频服务超时")

	_, err := svc.UpdateStatus(context.Background(), "appt-1", "doc-1", &dto.UpdateStatusRequest{
		Status: string(model.StatusConfirmed),
	})
	if !errors.Is(err, ErrMeetingRoomFailed) {
		t.Fatalf("期望 ErrMeetingRoomFailed，实际: %v", err)
	}
	if appt.Status != model.StatusPendingPayment {
		t.Errorf("建房失败状态不应转移，实际 %s", appt.Status)
	}
}

func TestAppointmentService_UpdateStatus_CompleteVideoTearsDownRoom(t *testing.T) {
	svc, mocks, rooms, _ := setupTestAppointmentService(t)
	bookableSlot(mocks, "slot-1", 5, 1)
	appt := seedAppointment(mocks, "appt-1", model.StatusInProgress, model.TypeVideo,
		time.Date(2026, 8, 24, 10, 15, 0, 0, time.UTC))
	appt.MeetingRoomID = "room-consult-appt-1"
	appt.MeetingRoom = "consult-appt-1"
	appt.MeetingURL = "https://meet.example.com/consult-appt-1"

	store := svc.calls.(*mockCallStore)
	_ = store.SetCurrentCall(context.Background(), "pat-1", "appt-1")
	_ = store.SetCurrentCall(context.Background(), "doc-1", "appt-1")

	if _, err := svc.UpdateStatus(context.Background(), "appt-1", "doc-1", &dto.UpdateStatusRequest{
		Status: string(model.StatusCompleted),
	}); err != nil {
		t.Fatalf("UpdateStatus 应成功: %v", err)
	}
	if len(rooms.deletedRooms) != 1 || rooms.deletedRooms[0] != "consult-appt-1" {
		t.Errorf("就诊完成应销毁视频房间，实际 %v", rooms.deletedRooms)
	}
	if len(store.calls) != 0 {
		t.Errorf("就诊完成应清理双方通话状态，实际 %v", store.calls)
	}
}

// ── Cancel 测试 ──

func TestAppointmentService_Cancel_PatientReleasesSeat(t *testing.T) {
	svc, mocks, _, notifier := setupTestAppointmentService(t)
	slot := bookableSlot(mocks, "slot-1", 2, 1)
	appt := seedAppointment(mocks, "appt-1", model.StatusConfirmed, model.TypeInClinic,
		time.Date(2026, 8, 24, 10, 15, 0, 0, time.UTC))

	err := svc.Cancel(context.Background(), "appt-1", "pat-1", "patient", &dto.CancelAppointmentRequest{
		Reason: "临时有事",
	})
	if err != nil {
		t.Fatalf("Cancel 应成功: %v", err)
	}
	if appt.Status != model.StatusCancelled {
		t.Errorf("期望 CANCELLED，实际 %s", appt.Status)
	}
	if appt.CancelledBy != "PATIENT" {
		t.Errorf("期望 CancelledBy=PATIENT，实际 %s", appt.CancelledBy)
	}
	if slot.BookedCount != 0 {
		t.Errorf("取消应归还名额，实际 %d", slot.BookedCount)
	}
	if len(notifier.cancelled) != 1 {
		t.Errorf("应发送取消通知，实际 %d 条", len(notifier.cancelled))
	}
}

func TestAppointmentService_Cancel_FullSlotReopens(t *testing.T) {
	svc, mocks, _, _ := setupTestAppointmentService(t)
	// 约满后被关闭的号源，取消一个名额应重新放开
	slot := bookableSlot(mocks, "slot-1", 2, 2)
	slot.IsAvailable = false
	seedAppointment(mocks, "appt-1", model.StatusConfirmed, model.TypeInClinic,
		time.Date(2026, 8, 24, 10, 15, 0, 0, time.UTC))

	if err := svc.Cancel(context.Background(), "appt-1", "pat-1", "patient", &dto.CancelAppointmentRequest{}); err != nil {
		t.Fatalf("Cancel 应成功: %v", err)
	}
	if !slot.IsAvailable {
		t.Error("因约满关闭的号源在归还名额后应重新放开")
	}
}

func TestAppointmentService_Cancel_DisabledSlotStaysDisabled(t *testing.T) {
	svc, mocks, _, _ := setupTestAppointmentService(t)
	// 被更高优先级排班停用的号源（未约满），取消后保持停用
	slot := bookableSlot(mocks, "slot-1", 2, 1)
	slot.IsAvailable = false
	seedAppointment(mocks, "appt-1", model.StatusConfirmed, model.TypeInClinic,
		time.Date(2026, 8, 24, 10, 15, 0, 0, time.UTC))

	if err := svc.Cancel(context.Background(), "appt-1", "pat-1", "patient", &dto.CancelAppointmentRequest{}); err != nil {
		t.Fatalf("Cancel 应成功: %v", err)
	}
	if slot.IsAvailable {
		t.Error("被排班停用的号源不应因取消预约而重新放开")
	}
	if slot.BookedCount != 0 {
		t.Errorf("名额仍应归还，实际 %d", slot.BookedCount)
	}
}

func TestAppointmentService_Cancel_TerminalStateRejected(t *testing.T) {
	svc, mocks, _, _ := setupTestAppointmentService(t)
	bookableSlot(mocks, "slot-1", 2, 1)
	seedAppointment(mocks, "appt-1", model.StatusCompleted, model.TypeInClinic,
		time.Date(2026, 8, 24, 10, 15, 0, 0, time.UTC))

	err := svc.Cancel(context.Background(), "appt-1", "pat-1", "patient", &dto.CancelAppointmentRequest{})
	if !errors.Is(err, ErrCannotCancel) {
		t.Errorf("已完成的预约不可取消，期望 ErrCannotCancel，实际: %v", err)
	}
}

func TestAppointmentService_Cancel_NotParticipant(t *testing.T) {
	svc, mocks, _, _ := setupTestAppointmentService(t)
	bookableSlot(mocks, "slot-1", 2, 1)
	seedAppointment(mocks, "appt-1", model.StatusConfirmed, model.TypeInClinic,
		time.Date(2026, 8, 24, 10, 15, 0, 0, time.UTC))

	err := svc.Cancel(context.Background(), "appt-1", "someone-else", "patient", &dto.CancelAppointmentRequest{})
	if !errors.Is(err, ErrNotParticipant) {
		t.Errorf("期望 ErrNotParticipant，实际: %v", err)
	}
}

// ── Reschedule 测试 ──

func TestAppointmentService_Reschedule_Success(t *testing.T) {
	svc, mocks, _, notifier := setupTestAppointmentService(t)
	oldSlot := bookableSlot(mocks, "slot-1", 1, 1)
	newSlot := bookableSlot(mocks, "slot-2", 1, 0)
	newSlot.StartTime = time.Date(2026, 8, 26, 14, 0, 0, 0, time.UTC)
	newSlot.EndTime = time.Date(2026, 8, 26, 14, 30, 0, 0, time.UTC)

	appt := seedAppointment(mocks, "appt-1", model.StatusConfirmed, model.TypeInClinic,
		oldSlot.StartTime)
	appt.FeeAmount = 15000
	appt.PaidAmount = 15000

	resp, err := svc.Reschedule(context.Background(), "appt-1", "pat-1", &dto.RescheduleRequest{
		NewSlotID: "slot-2",
		Reason:    "时间冲突",
	})
	if err != nil {
		t.Fatalf("Reschedule 应成功: %v", err)
	}
	// 原地改挂：预约记录不换，号源与就诊时间换
	if resp.ID != "appt-1" {
		t.Errorf("改期应保留原预约记录，实际 %s", resp.ID)
	}
	if appt.SlotID == nil || *appt.SlotID != "slot-2" {
		t.Errorf("预约应改挂到新号源，实际 %v", appt.SlotID)
	}
	if !appt.ScheduledAt.Equal(newSlot.StartTime) {
		t.Errorf("就诊时间应更新为新号源开诊时间，实际 %v", appt.ScheduledAt)
	}
	if appt.Status != model.StatusConfirmed {
		t.Errorf("改期不改变状态，已确认应保持确认，实际 %s", appt.Status)
	}
	if oldSlot.BookedCount != 0 {
		t.Errorf("原号源应归还名额，实际 %d", oldSlot.BookedCount)
	}
	if newSlot.BookedCount != 1 {
		t.Errorf("新号源应占用名额，实际 %d", newSlot.BookedCount)
	}
	if resp.FeeAmount != 15000 || resp.PaidAmount != 15000 {
		t.Errorf("费用与支付进度应沿用，实际 fee=%d paid=%d", resp.FeeAmount, resp.PaidAmount)
	}
	if len(notifier.rescheduled) != 1 {
		t.Errorf("应发送改期通知，实际 %d 条", len(notifier.rescheduled))
	}
}

func TestAppointmentService_Reschedule_LastSeatClosesNewSlot(t *testing.T) {
	svc, mocks, _, _ := setupTestAppointmentService(t)
	oldSlot := bookableSlot(mocks, "slot-1", 1, 1)
	oldSlot.IsAvailable = false // 原号源已约满关闭
	newSlot := bookableSlot(mocks, "slot-2", 1, 0)
	newSlot.StartTime = time.Date(2026, 8, 26, 14, 0, 0, 0, time.UTC)
	newSlot.EndTime = time.Date(2026, 8, 26, 14, 30, 0, 0, time.UTC)

	seedAppointment(mocks, "appt-1", model.StatusConfirmed, model.TypeInClinic, oldSlot.StartTime)

	if _, err := svc.Reschedule(context.Background(), "appt-1", "pat-1", &dto.RescheduleRequest{
		NewSlotID: "slot-2",
	}); err != nil {
		t.Fatalf("Reschedule 应成功: %v", err)
	}
	if !oldSlot.IsAvailable {
		t.Error("原号源归还名额后应重新放开")
	}
	if newSlot.IsAvailable {
		t.Error("新号源占满最后一个名额后应关闭")
	}
}

func TestAppointmentService_Reschedule_DoctorMismatchRejected(t *testing.T) {
	svc, mocks, _, _ := setupTestAppointmentService(t)
	bookableSlot(mocks, "slot-1", 1, 1)
	newSlot := bookableSlot(mocks, "slot-2", 1, 0)
	newSlot.DoctorID = "doc-other"

	appt := seedAppointment(mocks, "appt-1", model.StatusConfirmed, model.TypeInClinic,
		time.Date(2026, 8, 25, 9, 0, 0, 0, time.UTC))

	_, err := svc.Reschedule(context.Background(), "appt-1", "pat-1", &dto.RescheduleRequest{
		NewSlotID: "slot-2",
	})
	if !errors.Is(err, ErrDoctorMismatch) {
		t.Fatalf("改期不允许换医生，期望 ErrDoctorMismatch，实际: %v", err)
	}
	if appt.SlotID == nil || *appt.SlotID != "slot-1" {
		t.Errorf("改期失败预约应保持原号源，实际 %v", appt.SlotID)
	}
}

func TestAppointmentService_Reschedule_DuplicateOnNewSlotRejected(t *testing.T) {
	svc, mocks, _, _ := setupTestAppointmentService(t)
	bookableSlot(mocks, "slot-1", 1, 1)
	bookableSlot(mocks, "slot-2", 2, 1)

	seedAppointment(mocks, "appt-1", model.StatusConfirmed, model.TypeInClinic,
		time.Date(2026, 8, 25, 9, 0, 0, 0, time.UTC))
	// 同一患者在新号源上已有生效预约
	other := seedAppointment(mocks, "appt-2", model.StatusConfirmed, model.TypeInClinic,
		time.Date(2026, 8, 25, 9, 0, 0, 0, time.UTC))
	slot2 := "slot-2"
	other.SlotID = &slot2

	_, err := svc.Reschedule(context.Background(), "appt-1", "pat-1", &dto.RescheduleRequest{
		NewSlotID: "slot-2",
	})
	if !errors.Is(err, ErrDuplicateBooking) {
		t.Errorf("期望 ErrDuplicateBooking，实际: %v", err)
	}
}

func TestAppointmentService_Reschedule_UnpaidGoesToPendingPayment(t *testing.T) {
	svc, mocks, _, _ := setupTestAppointmentService(t)
	bookableSlot(mocks, "slot-1", 1, 1)
	bookableSlot(mocks, "slot-2", 1, 0)

	appt := seedAppointment(mocks, "appt-1", model.StatusPendingPayment, model.TypeInClinic,
		time.Date(2026, 8, 25, 9, 0, 0, 0, time.UTC))
	appt.FeeAmount = 15000

	resp, err := svc.Reschedule(context.Background(), "appt-1", "pat-1", &dto.RescheduleRequest{
		NewSlotID: "slot-2",
	})
	if err != nil {
		t.Fatalf("Reschedule 应成功: %v", err)
	}
	if resp.Status != string(model.StatusPendingPayment) {
		t.Errorf("未付清改期后仍应待支付，实际 %s", resp.Status)
	}
}

func TestAppointmentService_Reschedule_SameSlotRejected(t *testing.T) {
	svc, mocks, _, _ := setupTestAppointmentService(t)
	bookableSlot(mocks, "slot-1", 1, 1)
	seedAppointment(mocks, "appt-1", model.StatusConfirmed, model.TypeInClinic,
		time.Date(2026, 8, 25, 9, 0, 0, 0, time.UTC))

	_, err := svc.Reschedule(context.Background(), "appt-1", "pat-1", &dto.RescheduleRequest{
		NewSlotID: "slot-1",
	})
	if !errors.Is(err, ErrSameSlotReschedule) {
		t.Errorf("期望 ErrSameSlotReschedule，实际: %v", err)
	}
}

func TestAppointmentService_Reschedule_FullNewSlotLeavesOriginalIntact(t *testing.T) {
	svc, mocks, _, _ := setupTestAppointmentService(t)
	oldSlot := bookableSlot(mocks, "slot-1", 1, 1)
	bookableSlot(mocks, "slot-2", 1, 1) // 新号源已满

	appt := seedAppointment(mocks, "appt-1", model.StatusConfirmed, model.TypeInClinic,
		oldSlot.StartTime)

	_, err := svc.Reschedule(context.Background(), "appt-1", "pat-1", &dto.RescheduleRequest{
		NewSlotID: "slot-2",
	})
	if !errors.Is(err, ErrSlotFull) {
		t.Fatalf("期望 ErrSlotFull，实际: %v", err)
	}
	// 校验失败整个事务回滚，原预约保持原状
	if appt.Status != model.StatusConfirmed {
		t.Errorf("改期失败原预约不应变化，实际 %s", appt.Status)
	}
	if oldSlot.BookedCount != 1 {
		t.Errorf("改期失败原号源名额不应变化，实际 %d", oldSlot.BookedCount)
	}
}

func TestAppointmentService_Reschedule_InProgressRejected(t *testing.T) {
	svc, mocks, _, _ := setupTestAppointmentService(t)
	bookableSlot(mocks, "slot-1", 1, 1)
	bookableSlot(mocks, "slot-2", 1, 0)
	seedAppointment(mocks, "appt-1", model.StatusInProgress, model.TypeInClinic,
		time.Date(2026, 8, 25, 9, 0, 0, 0, time.UTC))

	_, err := svc.Reschedule(context.Background(), "appt-1", "pat-1", &dto.RescheduleRequest{
		NewSlotID: "slot-2",
	})
	if !errors.Is(err, ErrCannotReschedule) {
		t.Errorf("就诊中不可改期，期望 ErrCannotReschedule，实际: %v", err)
	}
}
