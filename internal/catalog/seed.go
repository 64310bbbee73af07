package catalog

import (
	"context"
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/coffeeshop-backend/pkg/db/models"
	"github.com/angelmondragon/coffeeshop-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/coffeeshop-backend/pkg/errors"
	"github.com/angelmondragon/coffeeshop-backend/pkg/types"
)

// SeedIfEmpty loads the starter catalog when the products table is empty and
// returns how many products were inserted.
func (s *service) SeedIfEmpty(ctx context.Context) (int, error) {
	inserted := 0
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		count, err := txRepo.Count(ctx)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: count products")
		}
		if count > 0 {
			return nil
		}
		for _, product := range seedProducts() {
			product := product
			if err := txRepo.Create(ctx, &product); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: seed product")
			}
			inserted++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	if inserted > 0 {
		s.logg.Info(s.logg.WithField(ctx, "products", inserted), "catalog seeded")
	}
	return inserted, nil
}

func seedProducts() []models.Product {
	rub := decimal.NewFromInt
	at := func(value string) time.Time {
		t, _ := time.Parse(time.RFC3339, value)
		return t
	}
	sizes := func(id string, small, medium, large int64) []models.ProductVariation {
		return []models.ProductVariation{
			{ProductID: id, Size: enums.ProductSizeSmall, Price: rub(small)},
			{ProductID: id, Size: enums.ProductSizeMedium, Price: rub(medium)},
			{ProductID: id, Size: enums.ProductSizeLarge, Price: rub(large)},
		}
	}

	return []models.Product{
		{
			ID:               "1",
			Name:             "Эспрессо",
			ShortDescription: "Классический крепкий кофе.",
			Description:      "Насыщенный эспрессо из свежеобжаренных зерен арабики с плотной пенкой.",
			Price:            rub(120),
			Category:         enums.ProductCategoryCoffee,
			Image:            "/images/products/espresso.jpg",
			Tags:             pq.StringArray{"popular"},
			Customizable:     true,
			Ingredients:      pq.StringArray{"Кофе арабика", "Вода"},
			Calories:         types.Calories{Total: 5, Fat: 0, Protein: 0, Carbs: 1},
			InStock:          true,
			CreatedAt:        at("2023-01-10T09:00:00Z"),
			Variations:       sizes("1", 120, 150, 180),
		},
		{
			ID:               "2",
			Name:             "Капучино",
			ShortDescription: "Эспрессо с молочной пенкой.",
			Description:      "Двойной эспрессо, горячее молоко и нежная молочная пена.",
			Price:            rub(180),
			Category:         enums.ProductCategoryCoffee,
			Image:            "/images/products/cappuccino.jpg",
			Tags:             pq.StringArray{"popular"},
			Customizable:     true,
			Ingredients:      pq.StringArray{"Эспрессо", "Молоко"},
			Calories:         types.Calories{Total: 120, Fat: 6, Protein: 6, Carbs: 10},
			InStock:          true,
			CreatedAt:        at("2023-02-14T10:15:00Z"),
			Variations:       sizes("2", 180, 220, 260),
		},
		{
			ID:               "3",
			Name:             "Латте",
			ShortDescription: "Мягкий кофе с большим количеством молока.",
			Description:      "Эспрессо с большим количеством вспененного молока и тонким слоем пены.",
			Price:            rub(200),
			Category:         enums.ProductCategoryCoffee,
			Image:            "/images/products/latte.jpg",
			Tags:             pq.StringArray{"popular"},
			Customizable:     true,
			Ingredients:      pq.StringArray{"Эспрессо", "Молоко"},
			Calories:         types.Calories{Total: 190, Fat: 7, Protein: 12, Carbs: 18},
			InStock:          true,
			CreatedAt:        at("2023-03-01T08:45:00Z"),
			Variations:       sizes("3", 200, 240, 280),
		},
		{
			ID:               "4",
			Name:             "Раф",
			ShortDescription: "Сливочный кофе с ванилью.",
			Description:      "Эспрессо, взбитый со сливками и ванильным сахаром.",
			Price:            rub(250),
			Category:         enums.ProductCategoryCoffee,
			Image:            "/images/products/raf.jpg",
			Tags:             pq.StringArray{"new"},
			Customizable:     true,
			Ingredients:      pq.StringArray{"Эспрессо", "Сливки", "Ванильный сахар"},
			Calories:         types.Calories{Total: 320, Fat: 22, Protein: 5, Carbs: 25},
			InStock:          true,
			CreatedAt:        at("2023-04-20T12:00:00Z"),
			Variations:       sizes("4", 250, 290, 330),
		},
		{
			ID:               "5",
			Name:             "Американо",
			ShortDescription: "Эспрессо, разбавленный горячей водой.",
			Description:      "Мягкий черный кофе на основе эспрессо.",
			Price:            rub(150),
			Category:         enums.ProductCategoryCoffee,
			Image:            "/images/products/americano.jpg",
			Tags:             pq.StringArray{},
			Customizable:     true,
			Ingredients:      pq.StringArray{"Эспрессо", "Вода"},
			Calories:         types.Calories{Total: 10, Fat: 0, Protein: 0, Carbs: 2},
			InStock:          true,
			CreatedAt:        at("2023-05-05T07:30:00Z"),
			Variations:       sizes("5", 150, 180, 210),
		},
		{
			ID:               "6",
			Name:             "Чизкейк",
			ShortDescription: "Классический десерт к вашему кофе.",
			Description:      "Нежный чизкейк с кремовой текстурой и песочным основанием.",
			Price:            rub(250),
			Category:         enums.ProductCategorySweets,
			Image:            "/images/products/cheesecake.jpg",
			Tags:             pq.StringArray{"popular"},
			Ingredients:      pq.StringArray{"Сыр", "Печенье", "Сахар", "Яйца"},
			Calories:         types.Calories{Total: 320},
			InStock:          true,
			CreatedAt:        at("2023-06-12T10:30:00Z"),
		},
		{
			ID:               "7",
			Name:             "Тирамису",
			ShortDescription: "Изысканный тирамису с кофейным ароматом.",
			Description:      "Итальянский десерт с кофе, маскарпоне и какао.",
			Price:            rub(280),
			Category:         enums.ProductCategorySweets,
			Image:            "/images/products/tiramisu.jpg",
			Tags:             pq.StringArray{"popular", "new"},
			Ingredients:      pq.StringArray{"Маскарпоне", "Кофе", "Какао", "Печенье Савоярди"},
			Calories:         types.Calories{Total: 350},
			InStock:          true,
			CreatedAt:        at("2023-07-01T18:00:00Z"),
		},
		{
			ID:               "8",
			Name:             "Браслет \"Кофейное зерно\"",
			ShortDescription: "Аксессуар для настоящих кофеманов.",
			Description:      "Стильный браслет с подвесками в виде кофейных зерен.",
			Price:            rub(450),
			Category:         enums.ProductCategoryAccessory,
			Image:            "/images/products/coffee-bean-bracelet.jpg",
			Tags:             pq.StringArray{},
			Ingredients:      pq.StringArray{"Металл", "Кофейные зерна"},
			InStock:          true,
			CreatedAt:        at("2023-08-20T13:45:00Z"),
		},
		{
			ID:               "9",
			Name:             "Кружка \"Coffee & Delights\"",
			ShortDescription: "Идеальная кружка для утреннего кофе.",
			Description:      "Керамическая кружка с логотипом вашего любимого кафе.",
			Price:            rub(300),
			Category:         enums.ProductCategoryAccessory,
			Image:            "/images/products/branded-mug.jpg",
			Tags:             pq.StringArray{"popular"},
			Ingredients:      pq.StringArray{"Керамика"},
			InStock:          true,
			CreatedAt:        at("2023-09-05T08:30:00Z"),
		},
		{
			ID:               "10",
			Name:             "Подарочный набор \"Кофейный гурман\"",
			ShortDescription: "Отличный подарок для ценителей кофе.",
			Description:      "Набор из разных сортов кофе, идеально подходящий для подарка.",
			Price:            rub(950),
			Category:         enums.ProductCategoryGift,
			Image:            "/images/products/coffee-gift-set.jpg",
			Tags:             pq.StringArray{"new"},
			Ingredients:      pq.StringArray{"Кофе разных сортов"},
			InStock:          true,
			CreatedAt:        at("2023-10-15T15:00:00Z"),
		},
	}
}
