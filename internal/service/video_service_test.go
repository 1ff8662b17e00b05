package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/minhducn14/dutu-pulmo-be-sub001/internal/model"
)

// ── 测试辅助 ──

func setupTestVideoService(t *testing.T) (*videoService, *testRepos, *mockRoomProvider, *mockCallStore) {
	t.Helper()
	repo, mocks := newTestRepository()
	rooms := newMockRoomProvider()
	calls := newMockCallStore()
	svc := NewVideoService(testConfig(), repo, rooms, calls, zap.NewNop()).(*videoService)
	svc.now = func() time.Time {
		return time.Date(2026, 8, 24, 10, 0, 0, 0, time.UTC)
	}
	return svc, mocks, rooms, calls
}

func seedVideoAppointment(mocks *testRepos, id string, status model.AppointmentStatus) *model.Appointment {
	return seedAppointment(mocks, id, status, model.TypeVideo,
		time.Date(2026, 8, 24, 10, 0, 0, 0, time.UTC))
}

// ── Join 测试 ──

func TestVideoService_Join_DoctorStartsConsultation(t *testing.T) {
	svc, mocks, _, calls := setupTestVideoService(t)
	appt := seedVideoAppointment(mocks, "appt-1", model.StatusConfirmed)

	resp, err := svc.Join(context.Background(), "appt-1", "doc-1", "doctor")
	if err != nil {
		t.Fatalf("Join 应成功: %v", err)
	}
	if resp.Status != string(model.StatusInProgress) {
		t.Errorf("医生加入已确认预约应推进到 IN_PROGRESS，实际 %s", resp.Status)
	}
	if appt.StartedAt == nil {
		t.Error("进入 IN_PROGRESS 应记录开始时间")
	}
	if resp.MeetingToken == "" {
		t.Error("应签发会议 token")
	}
	if resp.RoomURL == "" {
		t.Error("应返回房间地址")
	}
	if calls.calls["doc-1"] != "appt-1" {
		t.Errorf("应记录医生当前通话，实际 %q", calls.calls["doc-1"])
	}
	if appt.MeetingURL == "" {
		t.Error("房间信息应回写到预约")
	}
}

func TestVideoService_Join_PatientChecksIn(t *testing.T) {
	svc, mocks, _, _ := setupTestVideoService(t)
	appt := seedVideoAppointment(mocks, "appt-1", model.StatusConfirmed)

	resp, err := svc.Join(context.Background(), "appt-1", "pat-1", "patient")
	if err != nil {
		t.Fatalf("Join 应成功: %v", err)
	}
	// 患者进入房间即视频签到
	if resp.Status != string(model.StatusCheckedIn) {
		t.Errorf("患者加入应推进到 CHECKED_IN，实际 %s", resp.Status)
	}
	if appt.CheckInTime == nil {
		t.Error("视频签到应记录签到时间")
	}
}

func TestVideoService_Join_DoctorAfterPatientCheckIn(t *testing.T) {
	svc, mocks, _, _ := setupTestVideoService(t)
	seedVideoAppointment(mocks, "appt-1", model.StatusCheckedIn)

	resp, err := svc.Join(context.Background(), "appt-1", "doc-1", "doctor")
	if err != nil {
		t.Fatalf("Join 应成功: %v", err)
	}
	if resp.Status != string(model.StatusInProgress) {
		t.Errorf("医生加入已签到预约应推进到 IN_PROGRESS，实际 %s", resp.Status)
	}
}

func TestVideoService_Join_PatientDoesNotAdvanceInProgress(t *testing.T) {
	svc, mocks, _, _ := setupTestVideoService(t)
	seedVideoAppointment(mocks, "appt-1", model.StatusInProgress)

	resp, err := svc.Join(context.Background(), "appt-1", "pat-1", "patient")
	if err != nil {
		t.Fatalf("重新加入进行中的通话应成功: %v", err)
	}
	if resp.Status != string(model.StatusInProgress) {
		t.Errorf("患者重连不应改变状态，实际 %s", resp.Status)
	}
}

func TestVideoService_Join_ReusesExistingRoom(t *testing.T) {
	svc, mocks, rooms, _ := setupTestVideoService(t)
	seedVideoAppointment(mocks, "appt-1", model.StatusConfirmed)

	first, err := svc.Join(context.Background(), "appt-1", "pat-1", "patient")
	if err != nil {
		t.Fatalf("Join 应成功: %v", err)
	}
	second, err := svc.Join(context.Background(), "appt-1", "doc-1", "doctor")
	if err != nil {
		t.Fatalf("Join 应成功: %v", err)
	}
	if first.RoomURL != second.RoomURL {
		t.Errorf("医患双方应进入同一房间: %s vs %s", first.RoomURL, second.RoomURL)
	}
	if len(rooms.rooms) != 1 {
		t.Errorf("只应创建 1 个房间，实际 %d", len(rooms.rooms))
	}
}

func TestVideoService_Join_NotVideoAppointment(t *testing.T) {
	svc, mocks, _, _ := setupTestVideoService(t)
	seedAppointment(mocks, "appt-1", model.StatusConfirmed, model.TypeInClinic,
		time.Date(2026, 8, 24, 10, 0, 0, 0, time.UTC))

	_, err := svc.Join(context.Background(), "appt-1", "pat-1", "patient")
	if !errors.Is(err, ErrNotVideoAppointment) {
		t.Errorf("期望 ErrNotVideoAppointment，实际: %v", err)
	}
}

func TestVideoService_Join_NotJoinableStatus(t *testing.T) {
	svc, mocks, _, _ := setupTestVideoService(t)

	for _, status := range []model.AppointmentStatus{
		model.StatusPendingPayment,
		model.StatusCompleted,
		model.StatusCancelled,
	} {
		seedVideoAppointment(mocks, "appt-"+string(status), status)
		_, err := svc.Join(context.Background(), "appt-"+string(status), "pat-1", "patient")
		if !errors.Is(err, ErrCallNotJoinable) {
			t.Errorf("%s: 期望 ErrCallNotJoinable，实际: %v", status, err)
		}
	}
}

func TestVideoService_Join_NotParticipant(t *testing.T) {
	svc, mocks, _, _ := setupTestVideoService(t)
	seedVideoAppointment(mocks, "appt-1", model.StatusConfirmed)

	_, err := svc.Join(context.Background(), "appt-1", "someone-else", "patient")
	if !errors.Is(err, ErrNotParticipant) {
		t.Errorf("期望 ErrNotParticipant，实际: %v", err)
	}
}

func TestVideoService_Join_SwitchingCallsReplacesPrevious(t *testing.T) {
	svc, mocks, _, calls := setupTestVideoService(t)
	seedVideoAppointment(mocks, "appt-2", model.StatusConfirmed)
	calls.calls["pat-1"] = "appt-1" // 上一个未退出的通话

	if _, err := svc.Join(context.Background(), "appt-2", "pat-1", "patient"); err != nil {
		t.Fatalf("Join 应成功: %v", err)
	}
	if calls.calls["pat-1"] != "appt-2" {
		t.Errorf("加入新通话应替换旧通话状态，实际 %q", calls.calls["pat-1"])
	}
}

// ── CallStatus 测试 ──

func TestVideoService_CallStatus_ReflectsBothSides(t *testing.T) {
	svc, mocks, _, calls := setupTestVideoService(t)
	appt := seedVideoAppointment(mocks, "appt-1", model.StatusInProgress)
	appt.MeetingURL = "https://meet.example.com/consult-appt-1"
	calls.calls["doc-1"] = "appt-1"

	resp, err := svc.CallStatus(context.Background(), "appt-1", "pat-1")
	if err != nil {
		t.Fatalf("CallStatus 应成功: %v", err)
	}
	if resp.AppointmentStatus != string(model.StatusInProgress) {
		t.Errorf("期望 IN_PROGRESS，实际 %s", resp.AppointmentStatus)
	}
	if !resp.DoctorInCall {
		t.Error("医生已加入，DoctorInCall 应为 true")
	}
	if resp.PatientInCall {
		t.Error("患者未加入，PatientInCall 应为 false")
	}
	if resp.MeetingURL == "" {
		t.Error("应返回房间地址")
	}
}

func TestVideoService_CallStatus_OtherCallNotCounted(t *testing.T) {
	svc, mocks, _, calls := setupTestVideoService(t)
	seedVideoAppointment(mocks, "appt-1", model.StatusConfirmed)
	// 医生正处在另一场通话中
	calls.calls["doc-1"] = "appt-other"

	resp, err := svc.CallStatus(context.Background(), "appt-1", "doc-1")
	if err != nil {
		t.Fatalf("CallStatus 应成功: %v", err)
	}
	if resp.DoctorInCall {
		t.Error("处于其他通话不应计为本预约在线")
	}
}

func TestVideoService_CallStatus_NotParticipant(t *testing.T) {
	svc, mocks, _, _ := setupTestVideoService(t)
	seedVideoAppointment(mocks, "appt-1", model.StatusConfirmed)

	_, err := svc.CallStatus(context.Background(), "appt-1", "someone-else")
	if !errors.Is(err, ErrNotParticipant) {
		t.Errorf("期望 ErrNotParticipant，实际: %v", err)
	}
}

func TestVideoService_CallStatus_NotVideoAppointment(t *testing.T) {
	svc, mocks, _, _ := setupTestVideoService(t)
	seedAppointment(mocks, "appt-1", model.StatusConfirmed, model.TypeInClinic,
		time.Date(2026, 8, 24, 10, 0, 0, 0, time.UTC))

	_, err := svc.CallStatus(context.Background(), "appt-1", "pat-1")
	if !errors.Is(err, ErrNotVideoAppointment) {
		t.Errorf("期望 ErrNotVideoAppointment，实际: %v", err)
	}
}

// ── Leave 测试 ──

func TestVideoService_Leave_ClearsOnlyMatchingCall(t *testing.T) {
	svc, _, _, calls := setupTestVideoService(t)
	calls.calls["pat-1"] = "appt-1"

	// 退出非当前通话：不影响状态
	if err := svc.Leave(context.Background(), "appt-other", "pat-1"); err != nil {
		t.Fatalf("Leave 应成功: %v", err)
	}
	if calls.calls["pat-1"] != "appt-1" {
		t.Error("退出其他通话不应清掉当前通话状态")
	}

	if err := svc.Leave(context.Background(), "appt-1", "pat-1"); err != nil {
		t.Fatalf("Leave 应成功: %v", err)
	}
	if _, ok := calls.calls["pat-1"]; ok {
		t.Error("退出当前通话应清掉通话状态")
	}
}

// ── End 测试 ──

func TestVideoService_End_CompletesAndCleansUp(t *testing.T) {
	svc, mocks, rooms, calls := setupTestVideoService(t)
	appt := seedVideoAppointment(mocks, "appt-1", model.StatusInProgress)
	appt.MeetingRoom = "consult-appt-1"
	calls.calls["pat-1"] = "appt-1"
	calls.calls["doc-1"] = "appt-1"

	resp, err := svc.End(context.Background(), "appt-1", "doc-1")
	if err != nil {
		t.Fatalf("End 应成功: %v", err)
	}
	if resp.Status != string(model.StatusCompleted) {
		t.Errorf("结束问诊应进入 COMPLETED，实际 %s", resp.Status)
	}
	if appt.EndedAt == nil {
		t.Error("结束问诊应记录结束时间")
	}
	if len(rooms.deletedRooms) != 1 || rooms.deletedRooms[0] != "consult-appt-1" {
		t.Errorf("应销毁视频房间，实际 %v", rooms.deletedRooms)
	}
	if len(calls.calls) != 0 {
		t.Errorf("应清理双方通话状态，实际 %v", calls.calls)
	}
}

func TestVideoService_End_PatientRejected(t *testing.T) {
	svc, mocks, _, _ := setupTestVideoService(t)
	seedVideoAppointment(mocks, "appt-1", model.StatusInProgress)

	_, err := svc.End(context.Background(), "appt-1", "pat-1")
	if !errors.Is(err, ErrNotParticipant) {
		t.Errorf("只有医生可结束问诊，期望 ErrNotParticipant，实际: %v", err)
	}
}

func TestVideoService_End_RequiresInProgress(t *testing.T) {
	svc, mocks, _, _ := setupTestVideoService(t)
	seedVideoAppointment(mocks, "appt-1", model.StatusConfirmed)

	_, err := svc.End(context.Background(), "appt-1", "doc-1")
	if !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("未开始的问诊不可结束，期望 ErrInvalidTransition，实际: %v", err)
	}
}
