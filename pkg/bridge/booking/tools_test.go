package booking

import "testing"

func TestDecodeToolCall_UnknownTool(t *testing.T) {
	_, terr := DecodeToolCall("transfer_money", []byte(`{}`))
	if terr == nil || terr.Code != CodeUnknownTool {
		t.Fatalf("expected unknown_tool, got %v", terr)
	}
}

func TestDecodeToolCall_MalformedJSON(t *testing.T) {
	_, terr := DecodeToolCall(ToolCreateAppointment, []byte(`{"startISO":`))
	if terr == nil || terr.Code != CodeInvalidArguments {
		t.Fatalf("expected invalid_arguments, got %v", terr)
	}
}

func TestDecodeToolCall_CreateRequiresAllFields(t *testing.T) {
	cases := []string{
		`{"endISO":"2026-03-02T10:30:00Z","name":"Pat","reason":"checkup"}`,
		`{"startISO":"2026-03-02T10:00:00Z","name":"Pat","reason":"checkup"}`,
		`{"startISO":"2026-03-02T10:00:00Z","endISO":"2026-03-02T10:30:00Z","reason":"checkup"}`,
		`{"startISO":"2026-03-02T10:00:00Z","endISO":"2026-03-02T10:30:00Z","name":"Pat"}`,
	}
	for i, raw := range cases {
		if _, terr := DecodeToolCall(ToolCreateAppointment, []byte(raw)); terr == nil || terr.Code != CodeInvalidArguments {
			t.Errorf("case %d: expected invalid_arguments, got %v", i, terr)
		}
	}

	valid := `{"startISO":"2026-03-02T10:00:00Z","endISO":"2026-03-02T10:30:00Z","name":"Pat","reason":"checkup"}`
	decoded, terr := DecodeToolCall(ToolCreateAppointment, []byte(valid))
	if terr != nil {
		t.Fatalf("valid payload rejected: %v", terr)
	}
	args, ok := decoded.(*CreateAppointmentArgs)
	if !ok || args.Name != "Pat" {
		t.Fatalf("unexpected decode result: %#v", decoded)
	}
}

func TestDecodeToolCall_UpdateRequiresIDAndTimes(t *testing.T) {
	_, terr := DecodeToolCall(ToolUpdateEvent, []byte(`{"startISO":"2026-03-02T10:00:00Z","endISO":"2026-03-02T10:30:00Z"}`))
	if terr == nil || terr.Code != CodeInvalidArguments {
		t.Fatalf("expected invalid_arguments for missing eventId, got %v", terr)
	}
}

func TestDecodeToolCall_CancelRequiresID(t *testing.T) {
	_, terr := DecodeToolCall(ToolCancelEvent, []byte(`{"eventId":"  "}`))
	if terr == nil || terr.Code != CodeInvalidArguments {
		t.Fatalf("expected invalid_arguments, got %v", terr)
	}
}

func TestDecodeToolCall_EmptyArgumentsTreatedAsObject(t *testing.T) {
	decoded, terr := DecodeToolCall(ToolCheckAvailability, nil)
	if terr != nil {
		t.Fatalf("empty args should decode: %v", terr)
	}
	if _, ok := decoded.(*CheckAvailabilityArgs); !ok {
		t.Fatalf("unexpected decode result: %#v", decoded)
	}
}

func TestIsCalendarTool(t *testing.T) {
	if !IsCalendarTool(ToolCreateAppointment) || IsCalendarTool("hang_up") {
		t.Fatalf("calendar tool classification is wrong")
	}
}
