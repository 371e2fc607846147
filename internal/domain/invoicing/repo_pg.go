package invoicing

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/oxycare/oxycare/internal/domain/patient"
	"github.com/oxycare/oxycare/internal/platform/db"
	"github.com/oxycare/oxycare/pkg/pagination"
)

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

func (r *repoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

const numberConstraint = "invoices_numero_facture_key"

const invoiceCols = `f.id, f.numero_facture, f.patient_id, f.date_emission, f.date_echeance,
	f.montant_ht, f.taux_tva, f.montant_ttc, f.periode_debut, f.periode_fin, f.statut,
	f.date_paiement, f.methode_paiement, f.reference_paiement, f.assurance_id,
	f.numero_dossier_assurance, f.taux_prise_en_charge, f.montant_prise_en_charge,
	f.reste_a_charge, f.document_facture, f.notes, f.date_creation, f.date_modification,
	p.nom, p.prenom`

const invoiceFrom = ` FROM invoices f JOIN patients p ON p.id = f.patient_id`

func scanInvoice(row pgx.Row) (*Invoice, error) {
	var inv Invoice
	ref := &patient.Ref{}
	err := row.Scan(&inv.ID, &inv.NumeroFacture, &inv.PatientID, &inv.DateEmission,
		&inv.DateEcheance, &inv.MontantHT, &inv.TauxTVA, &inv.MontantTTC, &inv.PeriodeDebut,
		&inv.PeriodeFin, &inv.Statut, &inv.DatePaiement, &inv.MethodePaiement,
		&inv.ReferencePaiement, &inv.AssuranceID, &inv.NumeroDossierAssurance,
		&inv.TauxPriseEnCharge, &inv.MontantPriseEnCharge, &inv.ResteACharge,
		&inv.DocumentFacture, &inv.Notes, &inv.CreatedAt, &inv.UpdatedAt,
		&ref.Nom, &ref.Prenom)
	ref.ID = inv.PatientID
	inv.Patient = ref
	return &inv, err
}

func (r *repoPG) Create(ctx context.Context, inv *Invoice) error {
	inv.ID = uuid.New()
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO invoices (id, numero_facture, patient_id, date_emission, date_echeance,
			montant_ht, taux_tva, montant_ttc, periode_debut, periode_fin, statut,
			date_paiement, methode_paiement, reference_paiement, assurance_id,
			numero_dossier_assurance, taux_prise_en_charge, montant_prise_en_charge,
			reste_a_charge, document_facture, notes)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21)
		RETURNING date_creation, date_modification`,
		inv.ID, inv.NumeroFacture, inv.PatientID, inv.DateEmission, inv.DateEcheance,
		inv.MontantHT, inv.TauxTVA, inv.MontantTTC, inv.PeriodeDebut, inv.PeriodeFin,
		inv.Statut, inv.DatePaiement, inv.MethodePaiement, inv.ReferencePaiement,
		inv.AssuranceID, inv.NumeroDossierAssurance, inv.TauxPriseEnCharge,
		inv.MontantPriseEnCharge, inv.ResteACharge, inv.DocumentFacture, inv.Notes,
	).Scan(&inv.CreatedAt, &inv.UpdatedAt)
	if db.IsUniqueViolation(err, numberConstraint) {
		return ErrDuplicateNumber
	}
	if err != nil {
		return fmt.Errorf("insert invoice: %w", err)
	}
	return nil
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Invoice, error) {
	inv, err := scanInvoice(r.conn(ctx).QueryRow(ctx, `SELECT `+invoiceCols+invoiceFrom+` WHERE f.id = $1`, id))
	if db.IsNoRows(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get invoice: %w", err)
	}
	return inv, nil
}

func (r *repoPG) Update(ctx context.Context, inv *Invoice) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE invoices SET patient_id=$2, date_emission=$3, date_echeance=$4, montant_ht=$5,
			taux_tva=$6, montant_ttc=$7, periode_debut=$8, periode_fin=$9, statut=$10,
			date_paiement=$11, methode_paiement=$12, reference_paiement=$13, assurance_id=$14,
			numero_dossier_assurance=$15, taux_prise_en_charge=$16,
			montant_prise_en_charge=$17, reste_a_charge=$18, document_facture=$19, notes=$20,
			date_modification=NOW()
		WHERE id = $1
		RETURNING date_modification`,
		inv.ID, inv.PatientID, inv.DateEmission, inv.DateEcheance, inv.MontantHT, inv.TauxTVA,
		inv.MontantTTC, inv.PeriodeDebut, inv.PeriodeFin, inv.Statut, inv.DatePaiement,
		inv.MethodePaiement, inv.ReferencePaiement, inv.AssuranceID,
		inv.NumeroDossierAssurance, inv.TauxPriseEnCharge, inv.MontantPriseEnCharge,
		inv.ResteACharge, inv.DocumentFacture, inv.Notes,
	).Scan(&inv.UpdatedAt)
	if db.IsNoRows(err) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("update invoice: %w", err)
	}
	return nil
}

func (r *repoPG) List(ctx context.Context, f Filter, page pagination.Params) ([]*Invoice, int, error) {
	var w db.Where
	if f.PatientID != nil {
		w.Add("f.patient_id = $?", *f.PatientID)
	}
	if f.Statut != nil {
		w.Add("f.statut = $?", *f.Statut)
	}
	if f.From != nil {
		w.Add("f.date_emission >= $?", *f.From)
	}
	if f.To != nil {
		w.Add("f.date_emission <= $?", *f.To)
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM invoices f`+w.SQL(), w.Args()...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count invoices: %w", err)
	}
	suffix, args := w.Page(page.Limit, page.Offset)
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+invoiceCols+invoiceFrom+w.SQL()+` ORDER BY f.date_emission DESC, f.numero_facture DESC`+suffix, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list invoices: %w", err)
	}
	defer rows.Close()
	items := []*Invoice{}
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, inv)
	}
	return items, total, rows.Err()
}

func (r *repoPG) ListItems(ctx context.Context, invoiceID uuid.UUID) ([]*Item, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, facture_id, description, quantite, prix_unitaire, montant_total,
			equipement_id, intervention_id, service_id
		FROM invoice_items WHERE facture_id = $1
		ORDER BY ordre`, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("list invoice items: %w", err)
	}
	defer rows.Close()
	items := []*Item{}
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.ID, &it.FactureID, &it.Description, &it.Quantite,
			&it.PrixUnitaire, &it.MontantTotal, &it.EquipementID, &it.InterventionID,
			&it.ServiceID); err != nil {
			return nil, err
		}
		items = append(items, &it)
	}
	return items, rows.Err()
}

func (r *repoPG) ReplaceItems(ctx context.Context, invoiceID uuid.UUID, items []*Item) error {
	q := r.conn(ctx)
	if _, err := q.Exec(ctx, `DELETE FROM invoice_items WHERE facture_id = $1`, invoiceID); err != nil {
		return fmt.Errorf("delete invoice items: %w", err)
	}
	for i, it := range items {
		it.ID = uuid.New()
		it.FactureID = invoiceID
		_, err := q.Exec(ctx, `
			INSERT INTO invoice_items (id, facture_id, ordre, description, quantite,
				prix_unitaire, montant_total, equipement_id, intervention_id, service_id)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
			it.ID, it.FactureID, i, it.Description, it.Quantite, it.PrixUnitaire,
			it.MontantTotal, it.EquipementID, it.InterventionID, it.ServiceID)
		if db.IsForeignKeyViolation(err) {
			return ErrUnknownReference
		}
		if err != nil {
			return fmt.Errorf("insert invoice item: %w", err)
		}
	}
	return nil
}
