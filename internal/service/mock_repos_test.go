package service

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/minhducn14/dutu-pulmo-be-sub001/internal/model"
	"github.com/minhducn14/dutu-pulmo-be-sub001/internal/repository"
	"github.com/minhducn14/dutu-pulmo-be-sub001/pkg/video"
)

// ── Mock DoctorRepository ──

type mockDoctorRepo struct {
	doctors map[string]*model.Doctor
}

func newMockDoctorRepo() *mockDoctorRepo {
	return &mockDoctorRepo{doctors: make(map[string]*model.Doctor)}
}

func (m *mockDoctorRepo) Create(_ context.Context, doctor *model.Doctor) error {
	if doctor.DoctorID == "" {
		doctor.DoctorID = fmt.Sprintf("doc-%d", len(m.doctors)+1)
	}
	m.doctors[doctor.DoctorID] = doctor
	return nil
}

func (m *mockDoctorRepo) GetByID(_ context.Context, id string) (*model.Doctor, error) {
	if d, ok := m.doctors[id]; ok {
		return d, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockDoctorRepo) GetByUserID(_ context.Context, userID string) (*model.Doctor, error) {
	for _, d := range m.doctors {
		if d.UserID == userID {
			return d, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockDoctorRepo) List(_ context.Context, specialty string, offset, limit int) ([]model.Doctor, int64, error) {
	var result []model.Doctor
	for _, d := range m.doctors {
		if specialty != "" && d.Specialty != specialty {
			continue
		}
		result = append(result, *d)
	}
	return result, int64(len(result)), nil
}

func (m *mockDoctorRepo) Update(_ context.Context, doctor *model.Doctor) error {
	m.doctors[doctor.DoctorID] = doctor
	return nil
}

// ── Mock PatientRepository ──

type mockPatientRepo struct {
	patients map[string]*model.Patient
}

func newMockPatientRepo() *mockPatientRepo {
	return &mockPatientRepo{patients: make(map[string]*model.Patient)}
}

func (m *mockPatientRepo) Create(_ context.Context, patient *model.Patient) error {
	if patient.PatientID == "" {
		patient.PatientID = fmt.Sprintf("pat-%d", len(m.patients)+1)
	}
	m.patients[patient.PatientID] = patient
	return nil
}

func (m *mockPatientRepo) GetByID(_ context.Context, id string) (*model.Patient, error) {
	if p, ok := m.patients[id]; ok {
		return p, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockPatientRepo) GetByUserID(_ context.Context, userID string) (*model.Patient, error) {
	for _, p := range m.patients {
		if p.UserID == userID {
			return p, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockPatientRepo) Update(_ context.Context, patient *model.Patient) error {
	m.patients[patient.PatientID] = patient
	return nil
}

// ── Mock ScheduleRepository ──

type mockScheduleRepo struct {
	schedules map[string]*model.DoctorSchedule
	seq       int
}

func newMockScheduleRepo() *mockScheduleRepo {
	return &mockScheduleRepo{schedules: make(map[string]*model.DoctorSchedule)}
}

func (m *mockScheduleRepo) Create(_ context.Context, schedule *model.DoctorSchedule) error {
	for schedule.ScheduleID == "" {
		m.seq++
		id := fmt.Sprintf("sch-%d", m.seq)
		if _, taken := m.schedules[id]; !taken {
			schedule.ScheduleID = id
		}
	}
	m.schedules[schedule.ScheduleID] = schedule
	return nil
}

func (m *mockScheduleRepo) GetByID(_ context.Context, id string) (*model.DoctorSchedule, error) {
	if s, ok := m.schedules[id]; ok && !s.DeletedAt.Valid {
		return s, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockScheduleRepo) ListByDoctor(_ context.Context, doctorID string, kinds ...model.ScheduleKind) ([]model.DoctorSchedule, error) {
	var result []model.DoctorSchedule
	for _, s := range m.schedules {
		if s.DoctorID != doctorID || s.DeletedAt.Valid {
			continue
		}
		if len(kinds) > 0 {
			hit := false
			for _, k := range kinds {
				if s.Kind == k {
					hit = true
					break
				}
			}
			if !hit {
				continue
			}
		}
		result = append(result, *s)
	}
	return result, nil
}

func (m *mockScheduleRepo) ListByDoctorAndDate(_ context.Context, doctorID string, date time.Time) ([]model.DoctorSchedule, error) {
	day := int(date.Weekday())
	var result []model.DoctorSchedule
	for _, s := range m.schedules {
		if s.DoctorID != doctorID || s.DeletedAt.Valid {
			continue
		}
		switch s.Kind {
		case model.ScheduleRegular:
			if s.DayOfWeek != day {
				continue
			}
			if s.EffectiveFrom != nil && s.EffectiveFrom.After(date) {
				continue
			}
			if s.EffectiveUntil != nil && s.EffectiveUntil.Before(date) {
				continue
			}
			result = append(result, *s)
		default:
			if s.SpecificDate != nil && sameDate(s.SpecificDate, &date) {
				result = append(result, *s)
			}
		}
	}
	return result, nil
}

func (m *mockScheduleRepo) Update(_ context.Context, schedule *model.DoctorSchedule) error {
	cur, ok := m.schedules[schedule.ScheduleID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	schedule.Version++
	*cur = *schedule
	return nil
}

func (m *mockScheduleRepo) Delete(_ context.Context, id string, deletedBy, reason string) error {
	if s, ok := m.schedules[id]; ok {
		s.DeletedAt = gorm.DeletedAt{Time: time.Now(), Valid: true}
		s.DeletedBy = &deletedBy
		s.DeletionReason = reason
	}
	return nil
}

// ── Mock TimeSlotRepository ──

type mockTimeSlotRepo struct {
	slots map[string]*model.TimeSlot
	order []string // 保持插入顺序，便于断言
	seq   int
}

func newMockTimeSlotRepo() *mockTimeSlotRepo {
	return &mockTimeSlotRepo{slots: make(map[string]*model.TimeSlot)}
}

func (m *mockTimeSlotRepo) Create(_ context.Context, slot *model.TimeSlot) error {
	for slot.SlotID == "" {
		m.seq++
		id := fmt.Sprintf("slot-%d", m.seq)
		if _, taken := m.slots[id]; !taken {
			slot.SlotID = id
		}
	}
	m.slots[slot.SlotID] = slot
	m.order = append(m.order, slot.SlotID)
	return nil
}

func (m *mockTimeSlotRepo) BatchCreate(ctx context.Context, slots []model.TimeSlot) error {
	for i := range slots {
		if err := m.Create(ctx, &slots[i]); err != nil {
			return err
		}
	}
	return nil
}

func (m *mockTimeSlotRepo) GetByID(_ context.Context, id string) (*model.TimeSlot, error) {
	if s, ok := m.slots[id]; ok && !s.DeletedAt.Valid {
		return s, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockTimeSlotRepo) GetForUpdate(ctx context.Context, id string) (*model.TimeSlot, error) {
	return m.GetByID(ctx, id)
}

func (m *mockTimeSlotRepo) ListByDoctorAndRange(_ context.Context, doctorID string, from, to time.Time, onlyAvailable bool) ([]model.TimeSlot, error) {
	var result []model.TimeSlot
	for _, id := range m.order {
		s := m.slots[id]
		if s.DoctorID != doctorID || s.DeletedAt.Valid {
			continue
		}
		if s.StartTime.Before(from) || !s.StartTime.Before(to) {
			continue
		}
		if onlyAvailable && !s.IsAvailable {
			continue
		}
		result = append(result, *s)
	}
	return result, nil
}

func (m *mockTimeSlotRepo) Update(_ context.Context, slot *model.TimeSlot) error {
	cur, ok := m.slots[slot.SlotID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	*cur = *slot // 保持指针身份，测试桩可直接观察更新
	return nil
}

func (m *mockTimeSlotRepo) DisableUnbookedExcept(_ context.Context, doctorID string, dayStart, dayEnd time.Time, keepSlotIDs []string) (int64, error) {
	keep := make(map[string]bool, len(keepSlotIDs))
	for _, id := range keepSlotIDs {
		keep[id] = true
	}
	var affected int64
	for _, s := range m.slots {
		if s.DoctorID != doctorID || s.DeletedAt.Valid {
			continue
		}
		if s.StartTime.Before(dayStart) || !s.StartTime.Before(dayEnd) {
			continue
		}
		if s.BookedCount != 0 || !s.IsAvailable {
			continue
		}
		if keep[s.SlotID] {
			continue
		}
		s.IsAvailable = false
		affected++
	}
	return affected, nil
}

func (m *mockTimeSlotRepo) Delete(_ context.Context, id string, deletedBy string) error {
	if s, ok := m.slots[id]; ok {
		s.DeletedAt = gorm.DeletedAt{Time: time.Now(), Valid: true}
		s.DeletedBy = &deletedBy
	}
	return nil
}

// ── Mock AppointmentRepository ──

type mockAppointmentRepo struct {
	appts map[string]*model.Appointment
	seq   int
}

func newMockAppointmentRepo() *mockAppointmentRepo {
	return &mockAppointmentRepo{appts: make(map[string]*model.Appointment)}
}

func (m *mockAppointmentRepo) Create(_ context.Context, appt *model.Appointment) error {
	for appt.AppointmentID == "" {
		m.seq++
		id := fmt.Sprintf("appt-%d", m.seq)
		if _, taken := m.appts[id]; !taken {
			appt.AppointmentID = id
		}
	}
	m.appts[appt.AppointmentID] = appt
	return nil
}

func (m *mockAppointmentRepo) GetByID(_ context.Context, id string) (*model.Appointment, error) {
	if a, ok := m.appts[id]; ok {
		return a, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockAppointmentRepo) GetByNumber(_ context.Context, number string) (*model.Appointment, error) {
	for _, a := range m.appts {
		if a.AppointmentNumber == number {
			return a, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockAppointmentRepo) GetForUpdate(ctx context.Context, id string) (*model.Appointment, error) {
	return m.GetByID(ctx, id)
}

func (m *mockAppointmentRepo) HasActiveOnSlot(_ context.Context, patientID, slotID string) (bool, error) {
	for _, a := range m.appts {
		if a.PatientID != patientID || a.SlotID == nil || *a.SlotID != slotID {
			continue
		}
		for _, st := range model.ActiveStatuses() {
			if a.Status == st {
				return true, nil
			}
		}
	}
	return false, nil
}

func (m *mockAppointmentRepo) List(_ context.Context, q repository.AppointmentQuery) ([]model.Appointment, int64, error) {
	var result []model.Appointment
	for _, a := range m.appts {
		if q.PatientID != "" && a.PatientID != q.PatientID {
			continue
		}
		if q.DoctorID != "" && a.DoctorID != q.DoctorID {
			continue
		}
		if q.Status != "" && a.Status != q.Status {
			continue
		}
		if q.From != nil && a.ScheduledAt.Before(*q.From) {
			continue
		}
		if q.To != nil && !a.ScheduledAt.Before(*q.To) {
			continue
		}
		result = append(result, *a)
	}
	return result, int64(len(result)), nil
}

func (m *mockAppointmentRepo) ListActiveOverlapping(_ context.Context, doctorID string, start, end time.Time) ([]model.Appointment, error) {
	var result []model.Appointment
	for _, a := range m.appts {
		if a.DoctorID != doctorID {
			continue
		}
		active := false
		for _, st := range model.ActiveStatuses() {
			if a.Status == st {
				active = true
				break
			}
		}
		if !active {
			continue
		}
		if a.ScheduledAt.Before(end) && a.EndsAt().After(start) {
			result = append(result, *a)
		}
	}
	return result, nil
}

func (m *mockAppointmentRepo) NextQueueNumber(_ context.Context, doctorID string, dayStart, dayEnd time.Time) (int, error) {
	max := 0
	for _, a := range m.appts {
		if a.DoctorID != doctorID || a.QueueNumber == nil {
			continue
		}
		if a.ScheduledAt.Before(dayStart) || !a.ScheduledAt.Before(dayEnd) {
			continue
		}
		if *a.QueueNumber > max {
			max = *a.QueueNumber
		}
	}
	return max + 1, nil
}

func (m *mockAppointmentRepo) CountByStatus(_ context.Context, doctorID string, from, to time.Time) ([]repository.StatusCount, error) {
	counts := make(map[model.AppointmentStatus]int64)
	for _, a := range m.appts {
		if doctorID != "" && a.DoctorID != doctorID {
			continue
		}
		if a.ScheduledAt.Before(from) || !a.ScheduledAt.Before(to) {
			continue
		}
		counts[a.Status]++
	}
	var result []repository.StatusCount
	for st, n := range counts {
		result = append(result, repository.StatusCount{Status: st, Count: n})
	}
	return result, nil
}

func (m *mockAppointmentRepo) Update(_ context.Context, appt *model.Appointment) error {
	cur, ok := m.appts[appt.AppointmentID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	*cur = *appt
	return nil
}

// ── Mock RoomProvider ──

type mockRoomProvider struct {
	rooms        map[string]*video.Room
	deletedRooms []string
	tokenSeq     int
	createErr    error // 预置后 GetOrCreateRoom 固定失败
}

func newMockRoomProvider() *mockRoomProvider {
	return &mockRoomProvider{rooms: make(map[string]*video.Room)}
}

func (m *mockRoomProvider) GetOrCreateRoom(_ context.Context, name string) (*video.Room, error) {
	if m.createErr != nil {
		return nil, m.createErr
	}
	if r, ok := m.rooms[name]; ok {
		return r, nil
	}
	r := &video.Room{
		ID:   "room-" + name,
		Name: name,
		URL:  "https://video.test/" + name,
	}
	m.rooms[name] = r
	return r, nil
}

func (m *mockRoomProvider) DeleteRoom(_ context.Context, name string) error {
	delete(m.rooms, name)
	m.deletedRooms = append(m.deletedRooms, name)
	return nil
}

func (m *mockRoomProvider) CreateMeetingToken(_ context.Context, roomName, userID string, isOwner bool) (string, error) {
	m.tokenSeq++
	return fmt.Sprintf("token-%s-%d", roomName, m.tokenSeq), nil
}

// ── Mock CallStateStore ──

type mockCallStore struct {
	calls map[string]string // userID → appointmentID
}

func newMockCallStore() *mockCallStore {
	return &mockCallStore{calls: make(map[string]string)}
}

func (m *mockCallStore) SetCurrentCall(_ context.Context, userID, appointmentID string) error {
	m.calls[userID] = appointmentID
	return nil
}

func (m *mockCallStore) GetCurrentCall(_ context.Context, userID string) (string, error) {
	return m.calls[userID], nil
}

func (m *mockCallStore) ClearCurrentCall(_ context.Context, userID string) error {
	delete(m.calls, userID)
	return nil
}

func (m *mockCallStore) ClearCallsForAppointment(_ context.Context, appointmentID string, userIDs ...string) error {
	for _, uid := range userIDs {
		if m.calls[uid] == appointmentID {
			delete(m.calls, uid)
		}
	}
	return nil
}

// ── Mock Notifier ──

type mockNotifier struct {
	booked      []string // appointment_number
	cancelled   []string
	rescheduled []string
	conflicts   []string
}

func newMockNotifier() *mockNotifier { return &mockNotifier{} }

func (m *mockNotifier) AppointmentBooked(_ context.Context, appt *model.Appointment) {
	m.booked = append(m.booked, appt.AppointmentNumber)
}

func (m *mockNotifier) AppointmentCancelled(_ context.Context, appt *model.Appointment, by string) {
	m.cancelled = append(m.cancelled, appt.AppointmentNumber)
}

func (m *mockNotifier) AppointmentRescheduled(_ context.Context, appt *model.Appointment) {
	m.rescheduled = append(m.rescheduled, appt.AppointmentNumber)
}

func (m *mockNotifier) AppointmentConflict(_ context.Context, appt *model.Appointment, reason string) {
	m.conflicts = append(m.conflicts, appt.AppointmentNumber)
}

// ── 聚合构造 ──

type testRepos struct {
	doctor      *mockDoctorRepo
	patient     *mockPatientRepo
	schedule    *mockScheduleRepo
	timeSlot    *mockTimeSlotRepo
	appointment *mockAppointmentRepo
}

// newTestRepository 构造注入 mock 的 Repository。
// db 为 nil，WithTx 直接透传执行。
func newTestRepository() (*repository.Repository, *testRepos) {
	mocks := &testRepos{
		doctor:      newMockDoctorRepo(),
		patient:     newMockPatientRepo(),
		schedule:    newMockScheduleRepo(),
		timeSlot:    newMockTimeSlotRepo(),
		appointment: newMockAppointmentRepo(),
	}
	repo := &repository.Repository{
		Doctor:      mocks.doctor,
		Patient:     mocks.patient,
		Schedule:    mocks.schedule,
		TimeSlot:    mocks.timeSlot,
		Appointment: mocks.appointment,
	}
	return repo, mocks
}
