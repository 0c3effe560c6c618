package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/atvirokodosprendimai/magsav/internal/domain"
)

var stdout io.Writer = os.Stdout

func printJSON(v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(stdout, string(b))
	return err
}

func printKV(rows [][2]string) {
	w := tabwriter.NewWriter(stdout, 0, 0, 2, ' ', 0)
	for _, row := range rows {
		_, _ = fmt.Fprintf(w, "%s\t%s\n", row[0], row[1])
	}
	_ = w.Flush()
}

func printTable(headers []string, rows [][]string) {
	if len(rows) == 0 {
		_, _ = fmt.Fprintln(stdout, "no results")
		return
	}
	w := tabwriter.NewWriter(stdout, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, strings.Join(headers, "\t"))
	for _, row := range rows {
		_, _ = fmt.Fprintln(w, strings.Join(row, "\t"))
	}
	_ = w.Flush()
}

func uintToString(v uint) string {
	return strconv.FormatUint(uint64(v), 10)
}

func formatMaybeUint(v *uint) string {
	if v == nil {
		return "-"
	}
	return uintToString(*v)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format("2006-01-02 15:04:05")
}

func formatMaybeTime(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return formatTime(*t)
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}

func printProducts(items []domain.Product) {
	rows := make([][]string, 0, len(items))
	for _, item := range items {
		rows = append(rows, []string{
			uintToString(item.ID),
			item.UID,
			item.Name,
			orDash(item.SerialNumber),
			orDash(item.Manufacturer),
			string(item.Situation),
		})
	}
	printTable([]string{"ID", "UID", "NAME", "SERIAL", "MANUFACTURER", "SITUATION"}, rows)
}

func printProduct(item domain.Product) {
	printKV([][2]string{
		{"id", uintToString(item.ID)},
		{"uid", item.UID},
		{"name", item.Name},
		{"serial", orDash(item.SerialNumber)},
		{"manufacturer", orDash(item.Manufacturer)},
		{"category", orDash(item.Category)},
		{"subcategory", orDash(item.Subcategory)},
		{"description", orDash(item.Description)},
		{"situation", string(item.Situation)},
		{"updated_at", formatTime(item.UpdatedAt)},
	})
}

func printRequests(items []domain.ServiceRequest) {
	rows := make([][]string, 0, len(items))
	for _, item := range items {
		rows = append(rows, []string{
			uintToString(item.ID),
			string(item.Status),
			string(item.Type),
			orDash(item.ProductUID),
			orDash(item.ProductName),
			orDash(item.RequesterName),
			formatTime(item.CreatedAt),
		})
	}
	printTable([]string{"ID", "STATUS", "TYPE", "UID", "PRODUCT", "REQUESTER", "CREATED_AT"}, rows)
}

func printRequest(item domain.ServiceRequest) {
	printKV([][2]string{
		{"id", uintToString(item.ID)},
		{"status", string(item.Status)},
		{"type", string(item.Type)},
		{"product_id", formatMaybeUint(item.ProductID)},
		{"product_uid", orDash(item.ProductUID)},
		{"product_name", orDash(item.ProductName)},
		{"product_serial", orDash(item.ProductSerial)},
		{"owner", orDash(strings.TrimSpace(string(item.OwnerType) + " " + item.OwnerName))},
		{"fault", orDash(item.FaultDescription)},
		{"client_note", orDash(item.ClientNote)},
		{"requester", orDash(item.RequesterName)},
		{"validator", orDash(item.ValidatorName)},
		{"validation_notes", orDash(item.ValidationNotes)},
		{"validated_at", formatMaybeTime(item.ValidatedAt)},
		{"intervention_id", formatMaybeUint(item.InterventionID)},
	})
}

func printInterventions(items []domain.Intervention) {
	rows := make([][]string, 0, len(items))
	for _, item := range items {
		rows = append(rows, []string{
			uintToString(item.ID),
			orDash(item.ProductUID),
			orDash(item.ProductName),
			string(item.Status),
			formatMaybeUint(item.ServiceRequestID),
			formatTime(item.EnteredAt),
			formatMaybeTime(item.ExitedAt),
		})
	}
	printTable([]string{"ID", "UID", "PRODUCT", "STATUS", "REQUEST_ID", "ENTERED", "EXITED"}, rows)
}

func printIntervention(item domain.Intervention) {
	printKV([][2]string{
		{"id", uintToString(item.ID)},
		{"product_id", uintToString(item.ProductID)},
		{"product_uid", orDash(item.ProductUID)},
		{"product_name", orDash(item.ProductName)},
		{"request_id", formatMaybeUint(item.ServiceRequestID)},
		{"serial", orDash(item.SerialNumber)},
		{"status", string(item.Status)},
		{"fault", orDash(item.FaultDescription)},
		{"client_note", orDash(item.ClientNote)},
		{"entered_at", formatTime(item.EnteredAt)},
		{"exited_at", formatMaybeTime(item.ExitedAt)},
	})
}

type acceptOutput struct {
	Request        domain.ServiceRequest
	Intervention   domain.Intervention
	Product        *domain.Product
	ProductCreated bool
}

func printAcceptResult(item acceptOutput) {
	rows := [][2]string{
		{"request_id", uintToString(item.Request.ID)},
		{"status", string(item.Request.Status)},
		{"intervention_id", uintToString(item.Intervention.ID)},
		{"product_created", strconv.FormatBool(item.ProductCreated)},
	}
	if item.Product != nil {
		rows = append(rows,
			[2]string{"product_id", uintToString(item.Product.ID)},
			[2]string{"product_uid", item.Product.UID},
		)
	}
	printKV(rows)
}

type resolveOutput struct {
	UID     string          `json:"uid"`
	Known   bool            `json:"known"`
	Product *domain.Product `json:"product"`
}

func printResolution(item resolveOutput) {
	if !item.Known || item.Product == nil {
		printKV([][2]string{{"uid", item.UID}, {"known", "false"}})
		return
	}
	printKV([][2]string{
		{"uid", item.UID},
		{"known", "true"},
		{"product_id", uintToString(item.Product.ID)},
		{"name", item.Product.Name},
		{"situation", string(item.Product.Situation)},
	})
}

func printUsers(items []domain.User) {
	rows := make([][]string, 0, len(items))
	for _, item := range items {
		rows = append(rows, []string{
			uintToString(item.ID),
			item.Email,
			formatTime(item.CreatedAt),
		})
	}
	printTable([]string{"ID", "EMAIL", "CREATED_AT"}, rows)
}

func printRoles(items []domain.Role) {
	rows := make([][]string, 0, len(items))
	for _, item := range items {
		rows = append(rows, []string{
			uintToString(item.ID),
			item.Key,
			item.Name,
		})
	}
	printTable([]string{"ID", "KEY", "NAME"}, rows)
}

func printAuditRecords(items []domain.AuditRecord) {
	rows := make([][]string, 0, len(items))
	for _, item := range items {
		rows = append(rows, []string{
			uintToString(item.ID),
			item.Action,
			item.TargetType,
			formatMaybeUint(item.TargetID),
			orDash(item.ActorUserEmail),
			formatTime(item.CreatedAt),
		})
	}
	printTable([]string{"ID", "ACTION", "TARGET_TYPE", "TARGET_ID", "ACTOR", "AT"}, rows)
}
