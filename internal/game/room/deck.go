package room

import "math/rand"

// Reward 预测命中的资源奖励
type Reward string

const (
	RewardWallStock     Reward = "WALL_STOCK"     // 额外墙体库存
	RewardTrapCharge    Reward = "TRAP_CHARGE"    // 额外陷阱配额
	RewardRemovalCharge Reward = "REMOVAL_CHARGE" // 额外拆墙机会
)

// rewardDeck 洗好的奖励牌堆，抽空后重新补满再洗
type rewardDeck struct {
	rng   *rand.Rand
	cards []Reward
}

func newRewardDeck(rng *rand.Rand) *rewardDeck {
	d := &rewardDeck{rng: rng}
	d.refill()
	return d
}

func (d *rewardDeck) refill() {
	d.cards = []Reward{
		RewardWallStock, RewardWallStock, RewardWallStock, RewardWallStock,
		RewardTrapCharge, RewardTrapCharge, RewardTrapCharge,
		RewardRemovalCharge,
	}
	d.rng.Shuffle(len(d.cards), func(i, j int) {
		d.cards[i], d.cards[j] = d.cards[j], d.cards[i]
	})
}

// Draw 抽一张奖励
func (d *rewardDeck) Draw() Reward {
	if len(d.cards) == 0 {
		d.refill()
	}
	card := d.cards[len(d.cards)-1]
	d.cards = d.cards[:len(d.cards)-1]
	return card
}
