package portal

import (
	"strconv"
	"time"

	"github.com/lib/pq"
)

// dataset is the demo content served in fixture mode.
type dataset struct {
	profiles    []Profile
	projects    []Project
	checklist   []ChecklistItem
	expenses    []ProjectExpense
	materials   []Material
	orders      []Order
	users       []ProjectUser
	invitations []ProjectInvitation
	sensors     []IoTSensor
	thresholds  []IoTThreshold
	drones      []Drone
	activities  []ProjectActivity
}

func str(s string) *string   { return &s }
func num(f float64) *float64 { return &f }
func intPtr(i int) *int      { return &i }

func ts(s string) time.Time {
	t, _ := time.Parse(time.RFC3339, s)
	return t
}

func tsPtr(s string) *time.Time {
	t := ts(s)
	return &t
}

func day(s string) *time.Time {
	t, _ := time.Parse("2006-01-02", s)
	return &t
}

func seedProfiles() []Profile {
	created := ts("2024-01-01T00:00:00Z")
	profile := func(id, email, name string, kind UserType, company, phone string) Profile {
		p := Profile{ID: id, Email: email, FullName: str(name), UserType: kind, Phone: str(phone), CreatedAt: created, UpdatedAt: created}
		if company != "" {
			p.CompanyName = str(company)
		}
		return p
	}
	return []Profile{
		profile("demo-client-1", "client@demo.com", "Amadou Diallo", UserTypeClient, "", "+221 77 123 4567"),
		profile("demo-pro-1", "pro1@demo.com", "Fatou Sall", UserTypeProfessional, "BTP Excellence", "+221 78 987 6543"),
		profile("demo-pro-2", "pro2@demo.com", "Ibrahima Ndiaye", UserTypeProfessional, "Construction Moderne", "+221 77 456 7890"),
		profile("demo-supplier-1", "supplier@demo.com", "Moussa Kane", UserTypeProfessional, "Matériaux du Sahel", "+221 76 555 1234"),
		profile("demo-supplier-2", "supplier2@demo.com", "Ibrahima Ndiaye", UserTypeProfessional, "Carrière Diass", "+221 77 345 6789"),
		profile("demo-supplier-3", "supplier3@demo.com", "Aminata Sy", UserTypeProfessional, "Briqueterie Moderne", "+221 78 456 7890"),
		profile("demo-supplier-4", "supplier4@demo.com", "Ousmane Diop", UserTypeProfessional, "Peintures & Déco", "+221 77 567 8901"),
		profile("demo-supplier-5", "supplier5@demo.com", "Cheikh Fall", UserTypeProfessional, "Métallurgie Sénégal", "+221 76 789 0123"),
	}
}

func seedProjects() []Project {
	return []Project{
		{
			ID:             "demo-project-1",
			Name:           "Villa Moderne Dakar",
			Description:    str("Construction d'une villa moderne de 4 chambres avec piscine"),
			Status:         ProjectStatusInProgress,
			Progress:       65,
			Budget:         num(45000000),
			Spent:          num(29250000),
			Location:       str("Almadies, Dakar"),
			ClientID:       "demo-client-1",
			ProfessionalID: str("demo-pro-1"),
			StartDate:      day("2024-01-15"),
			EndDate:        day("2024-08-15"),
			CreatedAt:      ts("2024-01-15T00:00:00Z"),
			UpdatedAt:      ts("2024-01-20T00:00:00Z"),
		},
		{
			ID:          "demo-project-2",
			Name:        "Immeuble Commercial Thiès",
			Description: str("Construction d'un immeuble de bureaux de 3 étages"),
			Status:      ProjectStatusPlanning,
			Progress:    15,
			Budget:      num(85000000),
			Spent:       num(12750000),
			Location:    str("Centre-ville, Thiès"),
			ClientID:    "demo-client-1",
			StartDate:   day("2024-03-01"),
			EndDate:     day("2024-12-31"),
			CreatedAt:   ts("2024-01-10T00:00:00Z"),
			UpdatedAt:   ts("2024-01-18T00:00:00Z"),
		},
	}
}

func seedChecklist() []ChecklistItem {
	type step struct {
		title, description string
		duration           int
		priority           Priority
		completedAt        string
		dueDate            string
	}
	steps := []step{
		{"Étude de faisabilité", "Analyse du terrain et étude géotechnique", 7, PriorityHigh, "2024-01-20T00:00:00Z", ""},
		{"Permis de construire", "Dépôt et obtention du permis de construire", 30, PriorityCritical, "2024-02-15T00:00:00Z", ""},
		{"Préparation du terrain", "Nettoyage et nivellement du terrain", 5, PriorityHigh, "2024-02-20T00:00:00Z", ""},
		{"Fondations", "Excavation et coulage des fondations", 14, PriorityCritical, "2024-03-10T00:00:00Z", ""},
		{"Structure béton", "Montage de la structure en béton armé", 21, PriorityCritical, "2024-04-05T00:00:00Z", ""},
		{"Toiture", "Installation de la charpente et couverture", 10, PriorityHigh, "2024-04-20T00:00:00Z", ""},
		{"Murs et cloisons", "Construction des murs porteurs et cloisons", 14, PriorityHigh, "2024-05-10T00:00:00Z", ""},
		{"Électricité", "Installation électrique complète", 12, PriorityHigh, "", "2024-06-01"},
		{"Plomberie", "Installation sanitaire et plomberie", 10, PriorityHigh, "", "2024-06-15"},
		{"Revêtements sols", "Pose des carrelages et revêtements", 8, PriorityMedium, "", "2024-07-01"},
		{"Peinture", "Peinture intérieure et extérieure", 7, PriorityMedium, "", "2024-07-15"},
		{"Finitions", "Pose des équipements et finitions", 5, PriorityMedium, "", "2024-08-01"},
	}

	created := ts("2024-01-15T00:00:00Z")
	items := make([]ChecklistItem, len(steps))
	for i, s := range steps {
		item := ChecklistItem{
			ID:                "demo-checklist-" + strconv.Itoa(i+1),
			ProjectID:         "demo-project-1",
			Title:             s.title,
			Description:       str(s.description),
			OrderIndex:        i + 1,
			EstimatedDuration: intPtr(s.duration),
			Dependencies:      pq.StringArray{},
			Priority:          s.priority,
			CreatedAt:         created,
			UpdatedAt:         created,
		}
		if i > 0 {
			item.Dependencies = pq.StringArray{"demo-checklist-" + strconv.Itoa(i)}
		}
		if s.completedAt != "" {
			item.IsCompleted = true
			item.CompletedAt = tsPtr(s.completedAt)
			item.CompletedBy = str("demo-pro-1")
			item.UpdatedAt = ts(s.completedAt)
		}
		if s.dueDate != "" {
			item.DueDate = day(s.dueDate)
		}
		items[i] = item
	}
	return items
}

func seedMaterials() []Material {
	type entry struct {
		name, description string
		price             float64
		unit              string
		stock             int
		supplier          string
		category          string
		rating            float64
	}
	entries := []entry{
		{"Ciment Portland CEM II 42.5", "Sac de ciment de 50kg, qualité premium pour béton armé", 4500, "sac", 150, "demo-supplier-1", "Ciment", 4.8},
		{"Fer à béton HA 12mm", "Barre de fer à béton haute adhérence de 12mm, longueur 12m", 8500, "barre", 80, "demo-supplier-1", "Ferraillage", 4.6},
		{"Sable de rivière lavé", "Sable fin de rivière lavé, granulométrie 0-5mm", 25000, "m³", 50, "demo-supplier-2", "Granulats", 4.7},
		{"Gravier concassé 15/25", "Gravier concassé calibré 15/25mm pour béton", 30000, "m³", 75, "demo-supplier-2", "Granulats", 4.7},
		{"Briques creuses 15x20x40", "Briques creuses en terre cuite pour murs porteurs", 150, "unité", 2000, "demo-supplier-3", "Maçonnerie", 4.5},
		{"Carrelage 60x60 Grès Cérame", "Carrelage grès cérame rectifié 60x60", 8500, "m²", 300, "demo-supplier-3", "Finitions", 4.9},
		{"Peinture Acrylique Blanche", "Peinture acrylique mate intérieur et extérieur", 12500, "pot", 45, "demo-supplier-4", "Finitions", 4.4},
		{"Tuyau PVC Ø110mm", "Tube PVC évacuation, longueur 4m", 3500, "tube", 120, "demo-supplier-4", "Plomberie", 4.3},
		{"Parpaing 20x20x50", "Bloc de béton creux pour maçonnerie", 350, "unité", 1500, "demo-supplier-3", "Maçonnerie", 4.6},
		{"Tôle ondulée galvanisée", "Tôle de couverture galvanisée", 15000, "feuille", 200, "demo-supplier-5", "Couverture", 4.7},
		{"Mortier colle carrelage", "Mortier colle pour pose de carrelage", 6500, "sac 25kg", 80, "demo-supplier-1", "Finitions", 4.8},
		{"Isolant thermique laine de verre", "Rouleau de laine de verre pour isolation", 4200, "m²", 150, "demo-supplier-5", "Isolation", 4.5},
	}

	created := ts("2024-01-01T00:00:00Z")
	materials := make([]Material, len(entries))
	for i, e := range entries {
		materials[i] = Material{
			ID:            "demo-material-" + strconv.Itoa(i+1),
			Name:          e.name,
			Description:   str(e.description),
			Price:         e.price,
			Unit:          e.unit,
			StockQuantity: e.stock,
			SupplierID:    e.supplier,
			Category:      str(e.category),
			Rating:        e.rating,
			ImageURL:      str("/placeholder.svg?height=200&width=200"),
			CreatedAt:     created,
			UpdatedAt:     created,
		}
	}
	return materials
}

func seedOrders() []Order {
	return []Order{
		{
			ID: "demo-order-1", OrderNumber: "CMD-2024-001",
			ClientID: "demo-client-1", SupplierID: "demo-supplier-1",
			ProjectID: str("demo-project-1"), MaterialID: str("demo-material-1"),
			Quantity: 50, UnitPrice: 4500, TotalPrice: 225000, Status: OrderDelivered,
			CreatedAt: ts("2024-01-16T00:00:00Z"), UpdatedAt: ts("2024-01-18T00:00:00Z"),
		},
		{
			ID: "demo-order-2", OrderNumber: "CMD-2024-002",
			ClientID: "demo-client-1", SupplierID: "demo-supplier-1",
			ProjectID: str("demo-project-1"), MaterialID: str("demo-material-2"),
			Quantity: 25, UnitPrice: 8500, TotalPrice: 212500, Status: OrderConfirmed,
			CreatedAt: ts("2024-01-17T00:00:00Z"), UpdatedAt: ts("2024-01-17T00:00:00Z"),
		},
	}
}

func seedSensors() []IoTSensor {
	created, updated := ts("2024-01-15T00:00:00Z"), ts("2024-01-20T00:00:00Z")
	return []IoTSensor{
		{ID: "demo-sensor-1", ProjectID: "demo-project-1", SensorType: "Température", Location: "Fondations", Value: 24.5, Unit: "°C", Status: SensorNormal, CreatedAt: created, UpdatedAt: updated},
		{ID: "demo-sensor-2", ProjectID: "demo-project-1", SensorType: "Humidité", Location: "Béton", Value: 65, Unit: "%", Status: SensorWarning, CreatedAt: created, UpdatedAt: updated},
		{ID: "demo-sensor-3", ProjectID: "demo-project-1", SensorType: "Vibration", Location: "Structure", Value: 2.1, Unit: "Hz", Status: SensorNormal, CreatedAt: created, UpdatedAt: updated},
	}
}

func seedDrones() []Drone {
	created := ts("2024-01-01T00:00:00Z")
	return []Drone{
		{ID: "demo-drone-1", Name: "Drone Inspection #1", Model: str("DJI Phantom 4 Pro"), Status: DroneAvailable, BatteryLevel: 85, Altitude: num(0), CreatedAt: created, UpdatedAt: ts("2024-01-20T00:00:00Z")},
		{ID: "demo-drone-2", Name: "Drone Surveillance #2", Model: str("DJI Mavic Air 2"), Status: DroneInFlight, BatteryLevel: 72, Altitude: num(45), ProjectID: str("demo-project-1"), CreatedAt: created, UpdatedAt: ts("2024-01-20T00:00:00Z")},
		{ID: "demo-drone-3", Name: "Drone Cartographie #3", Model: str("DJI Mini 3 Pro"), Status: DroneMaintenance, BatteryLevel: 0, Altitude: num(0), CreatedAt: created, UpdatedAt: ts("2024-01-18T00:00:00Z")},
	}
}

func seedDataset() *dataset {
	return &dataset{
		profiles:  seedProfiles(),
		projects:  seedProjects(),
		checklist: seedChecklist(),
		expenses: []ProjectExpense{
			{ID: "demo-expense-1", ProjectID: "demo-project-1", Description: "Achat ciment Portland", Amount: 225000, Category: ExpenseMaterials, Date: *day("2024-01-16"), CreatedBy: "demo-pro-1", CreatedAt: ts("2024-01-16T00:00:00Z"), UpdatedAt: ts("2024-01-16T00:00:00Z")},
			{ID: "demo-expense-2", ProjectID: "demo-project-1", Description: "Main d'œuvre fondations", Amount: 850000, Category: ExpenseLabor, Date: *day("2024-01-15"), CreatedBy: "demo-pro-1", CreatedAt: ts("2024-01-15T00:00:00Z"), UpdatedAt: ts("2024-01-15T00:00:00Z")},
		},
		materials: seedMaterials(),
		orders:    seedOrders(),
		users: []ProjectUser{
			{ID: "demo-project-user-1", ProjectID: "demo-project-1", UserID: "demo-pro-1", Role: RoleManager, Permissions: pq.StringArray{"read", "write", "delete"}, CreatedAt: ts("2024-01-15T00:00:00Z"), UpdatedAt: ts("2024-01-15T00:00:00Z")},
		},
		sensors: seedSensors(),
		drones:  seedDrones(),
		activities: []ProjectActivity{
			{ID: "demo-activity-1", ProjectID: "demo-project-1", ActivityType: "construction", Description: "Coulage des fondations terminé", UserID: "demo-pro-1", CreatedAt: ts("2024-01-18T00:00:00Z"), UpdatedAt: ts("2024-01-18T00:00:00Z")},
			{ID: "demo-activity-2", ProjectID: "demo-project-1", ActivityType: "inspection", Description: "Inspection drone effectuée", UserID: "demo-pro-1", CreatedAt: ts("2024-01-17T00:00:00Z"), UpdatedAt: ts("2024-01-17T00:00:00Z")},
		},
	}
}
