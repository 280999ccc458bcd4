package models

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestItemStatusOf(t *testing.T) {
	now := time.Now()
	later := now.Add(time.Minute)

	tests := []struct {
		name  string
		start *time.Time
		end   *time.Time
		want  ItemStatus
	}{
		{"no timestamps", nil, nil, ItemPending},
		{"started", &now, nil, ItemPreparing},
		{"finished", &now, &later, ItemReady},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ItemStatusOf(tt.start, tt.end); got != tt.want {
				t.Errorf("ItemStatusOf() = %s, want %s", got, tt.want)
			}
			item := OrderItem{StartTime: tt.start, EndTime: tt.end}
			if got := item.Status(); got != tt.want {
				t.Errorf("Status() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestOrderItem_MarshalIncludesStatus(t *testing.T) {
	now := time.Now()
	body, err := json.Marshal(OrderItem{ID: 3, OrderID: "AB123", ProductID: 9, StartTime: &now})
	if err != nil {
		t.Fatal(err)
	}

	var out map[string]interface{}
	if err := json.Unmarshal(body, &out); err != nil {
		t.Fatal(err)
	}
	if out["status"] != string(ItemPreparing) {
		t.Errorf("status = %v", out["status"])
	}
	if out["order_id"] != "AB123" {
		t.Errorf("order_id = %v", out["order_id"])
	}
}

func TestOrderStatus_Before(t *testing.T) {
	order := []OrderStatus{OrderPending, OrderPreparing, OrderReady, OrderServed, OrderPaid}
	for i := 0; i < len(order)-1; i++ {
		if !order[i].Before(order[i+1]) {
			t.Errorf("%s should come before %s", order[i], order[i+1])
		}
		if order[i+1].Before(order[i]) {
			t.Errorf("%s should not come before %s", order[i+1], order[i])
		}
	}
}

func TestGenerateOrderID(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		id, err := GenerateOrderID()
		if err != nil {
			t.Fatal(err)
		}
		if len(id) != OrderIDLength {
			t.Fatalf("id %q has length %d", id, len(id))
		}
		if strings.Trim(id, orderIDAlphabet) != "" {
			t.Fatalf("id %q has characters outside the alphabet", id)
		}
		seen[id] = true
	}
	if len(seen) < 40 {
		t.Fatalf("ids are not random enough: %d distinct of 50", len(seen))
	}
}

func TestRoleStation(t *testing.T) {
	tests := []struct {
		role   Role
		want   ProductType
		wantOK bool
	}{
		{RoleBrewer, ProductBeer, true},
		{RoleBartender, ProductWineOrDrink, true},
		{RoleChef, ProductMeal, true},
		{RoleBaker, ProductPastries, true},
		{RolePartner, "", false},
		{RoleWaiter, "", false},
	}

	for _, tt := range tests {
		got, ok := tt.role.Station()
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("%s.Station() = (%s, %v), want (%s, %v)", tt.role, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestSurveyAverage(t *testing.T) {
	s := Survey{TableRating: 10, RestaurantRating: 8, WaiterRating: 7, ChefRating: 6}
	if got := s.Average(); got != 7.75 {
		t.Fatalf("Average() = %v, want 7.75", got)
	}

	body, err := json.Marshal(s)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(body), `"average":7.75`) {
		t.Fatalf("marshalled survey lacks average: %s", body)
	}
}

func TestPlaceOrderRequest_Validate(t *testing.T) {
	tests := []struct {
		name    string
		req     PlaceOrderRequest
		wantErr string
	}{
		{"valid", PlaceOrderRequest{ClientName: "Ana", Items: []PlaceOrderItem{{ProductID: 1}}}, ""},
		{"valid with id", PlaceOrderRequest{ID: "ab12Z", ClientName: "Ana", Items: []PlaceOrderItem{{ProductID: 1}}}, ""},
		{"short id", PlaceOrderRequest{ID: "ab1", ClientName: "Ana", Items: []PlaceOrderItem{{ProductID: 1}}}, "id"},
		{"symbol in id", PlaceOrderRequest{ID: "ab-12", ClientName: "Ana", Items: []PlaceOrderItem{{ProductID: 1}}}, "id"},
		{"missing client", PlaceOrderRequest{ClientName: "  ", Items: []PlaceOrderItem{{ProductID: 1}}}, "client_name"},
		{"no items", PlaceOrderRequest{ClientName: "Ana"}, "items"},
		{"zero product", PlaceOrderRequest{ClientName: "Ana", Items: []PlaceOrderItem{{ProductID: 0}}}, "items[0].product_id"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			verr, ok := err.(ValidationError)
			if !ok {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if verr.Field != tt.wantErr {
				t.Fatalf("field = %q, want %q", verr.Field, tt.wantErr)
			}
		})
	}
}

func TestSurveyRequest_Validate(t *testing.T) {
	empty := " "
	ok := "great"
	base := SurveyRequest{OrderID: "AB123", TableRating: 5, RestaurantRating: 5, WaiterRating: 5, ChefRating: 5}

	tests := []struct {
		name    string
		mutate  func(*SurveyRequest)
		wantErr bool
	}{
		{"valid", func(r *SurveyRequest) {}, false},
		{"valid comment", func(r *SurveyRequest) { r.Comment = &ok }, false},
		{"empty comment", func(r *SurveyRequest) { r.Comment = &empty }, true},
		{"rating too low", func(r *SurveyRequest) { r.ChefRating = 0 }, true},
		{"rating too high", func(r *SurveyRequest) { r.TableRating = 11 }, true},
		{"missing order", func(r *SurveyRequest) { r.OrderID = "" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := base
			tt.mutate(&req)
			if err := req.Validate(); (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestUserRequest_Validate(t *testing.T) {
	req := UserRequest{FirstName: "Ana", LastName: "Diaz", Email: "ana@example.com", Password: "secret1", Role: "CHEF"}
	if err := req.Validate(true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	req.Password = ""
	if err := req.Validate(true); err == nil {
		t.Fatal("expected password error on create")
	}
	if err := req.Validate(false); err != nil {
		t.Fatalf("password must be optional on update: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*UserRequest)
		field  string
	}{
		{"unknown role", func(r *UserRequest) { r.Role = "DJ" }, "role"},
		{"blank first name", func(r *UserRequest) { r.FirstName = "  " }, "first_name"},
		{"bad email", func(r *UserRequest) { r.Email = "ana.example.com" }, "email"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := req
			tt.mutate(&r)
			verr, ok := r.Validate(false).(ValidationError)
			if !ok {
				t.Fatalf("expected ValidationError")
			}
			if verr.Field != tt.field {
				t.Fatalf("field = %q, want %q", verr.Field, tt.field)
			}
		})
	}
}
